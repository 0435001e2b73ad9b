package transfer

import (
	"context"
	"encoding/json"
	"errors"

	"tng-backend/internal/assets"
	"tng-backend/internal/balances"
	"tng-backend/internal/domain"
	"tng-backend/internal/idempotency"
	"tng-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine orchestrates an atomic two-sided move: debit the sender, credit
// the recipient, update both cached balances, and record the idempotency
// outcome. Either both POSTED entries and both balance updates commit, or
// nothing does.
type Engine struct {
	DB       *gorm.DB
	Store    *ledger.Store
	Balances *balances.Service
	Assets   *assets.Service
	Guard    *idempotency.Guard
	Limiter  *RateLimiter

	// beforeCommit runs after the entries and deltas are staged but before
	// the transaction commits. Fault-injection hook for tests; nil in production.
	beforeCommit func() error
}

// Request is one logical transfer.
type Request struct {
	FromUserID     uuid.UUID
	ToUserID       uuid.UUID
	AssetSymbol    string
	Amount         int64
	IdempotencyKey string
	Description    string
	Metadata       map[string]interface{}
	TxType         string
}

// Result is returned to the caller and stored verbatim for replays.
type Result struct {
	TransferID uuid.UUID            `json:"transfer_id"`
	Entries    []domain.LedgerEntry `json:"ledger_entries"`
	Replayed   bool                 `json:"replayed,omitempty"`
}

// ExecuteTransfer runs a user-to-user internal transfer.
func (e *Engine) ExecuteTransfer(ctx context.Context, fromUserID, toUserID uuid.UUID, assetSymbol string, amount int64, idempotencyKey, description string, metadata map[string]interface{}) (*Result, error) {
	return e.Execute(ctx, Request{
		FromUserID:     fromUserID,
		ToUserID:       toUserID,
		AssetSymbol:    assetSymbol,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		Description:    description,
		Metadata:       metadata,
		TxType:         domain.TxTransferInternal,
	})
}

// Execute runs a typed double-entry move (internal transfer, reward,
// lending legs). All validation happens before any storage write.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.FromUserID == uuid.Nil || req.ToUserID == uuid.Nil {
		return nil, ledger.E(ledger.CodeInvalidUser, "both users are required")
	}
	if req.FromUserID == req.ToUserID {
		return nil, ledger.E(ledger.CodeSelfTransfer, "cannot transfer to yourself")
	}
	if req.Amount <= 0 {
		return nil, ledger.E(ledger.CodeInvalidAmount, "amount must be positive")
	}
	if req.IdempotencyKey == "" {
		return nil, ledger.E(ledger.CodeInternalError, "idempotency key is required")
	}
	if _, err := e.Assets.Get(ctx, req.AssetSymbol); err != nil {
		if ledger.CodeOf(err) == ledger.CodeAssetNotFound {
			return nil, ledger.E(ledger.CodeInvalidAsset, "unknown asset "+req.AssetSymbol)
		}
		return nil, err
	}

	if prior, err := e.Guard.Begin(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if prior != nil {
		return replay(prior)
	}

	// The Redis reservation is held from here on: terminal outcomes are
	// stored under the key, transient failures drop it so retries re-run.
	if res, err := e.replayFromRecord(ctx, req.IdempotencyKey); res != nil || err != nil {
		return res, err
	}

	// Only fresh user-initiated transfers are rate limited: replays of a
	// completed transfer cost no budget, and system flows (rewards,
	// lending legs) pace themselves. A limited request drops the
	// reservation so the retry after the window re-runs.
	if e.Limiter != nil && req.TxType == domain.TxTransferInternal {
		if err := e.Limiter.Allow(ctx, req.FromUserID); err != nil {
			e.Guard.Abort(ctx, req.IdempotencyKey)
			return nil, err
		}
	}

	res, err := e.commit(ctx, req)
	if err != nil {
		code := ledger.CodeOf(err)
		if code.Integrity() {
			// Retryable: release the reservation, surface the fault.
			e.Guard.Abort(ctx, req.IdempotencyKey)
			log.Error().Err(err).
				Str("idempotency_key", req.IdempotencyKey).
				Str("from", req.FromUserID.String()).
				Str("to", req.ToUserID.String()).
				Msg("transfer failed with integrity error")
			return nil, err
		}
		// Deterministic rejection: store it so replays see the same answer.
		msg := "transfer rejected"
		var le *ledger.Error
		if errors.As(err, &le) {
			msg = le.Message
		}
		_ = e.Guard.Complete(ctx, req.IdempotencyKey, &idempotency.Outcome{
			Success: false,
			Code:    code,
			Message: msg,
		})
		return nil, err
	}

	body, merr := json.Marshal(res)
	if merr != nil {
		body = nil
	}
	_ = e.Guard.Complete(ctx, req.IdempotencyKey, &idempotency.Outcome{
		TransferID: res.TransferID.String(),
		Success:    true,
		Body:       body,
	})
	return res, nil
}

// commit performs the atomic unit: row locks in deterministic order,
// available-funds check, paired POSTED entries, both balance deltas, and
// the durable idempotency record.
func (e *Engine) commit(ctx context.Context, req Request) (*Result, error) {
	txRef := uuid.New()
	var entries []*domain.LedgerEntry

	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		from, to, err := e.lockPair(tx, req)
		if err != nil {
			return err
		}

		if from.Available() < req.Amount {
			return ledger.E(ledger.CodeInsufficientAvailableBalance, "insufficient available balance")
		}

		var meta datatypes.JSON
		if req.Metadata != nil {
			b, err := json.Marshal(req.Metadata)
			if err != nil {
				return ledger.Wrap(ledger.CodeInternalError, "encoding transfer metadata", err)
			}
			meta = datatypes.JSON(b)
		}

		entries = []*domain.LedgerEntry{
			{
				UserID:      req.FromUserID,
				AssetSymbol: req.AssetSymbol,
				Amount:      req.Amount,
				Direction:   domain.DirectionDebit,
				TxType:      req.TxType,
				TxRef:       txRef,
				Description: req.Description,
				Metadata:    meta,
			},
			{
				UserID:      req.ToUserID,
				AssetSymbol: req.AssetSymbol,
				Amount:      req.Amount,
				Direction:   domain.DirectionCredit,
				TxType:      req.TxType,
				TxRef:       txRef,
				Description: req.Description,
				Metadata:    meta,
			},
		}
		if err := e.Store.Append(tx, entries); err != nil {
			return err
		}

		if e.beforeCommit != nil {
			if err := e.beforeCommit(); err != nil {
				return err
			}
		}

		if err := e.Balances.ApplyDelta(tx, from, -req.Amount); err != nil {
			return err
		}
		if err := e.Balances.ApplyDelta(tx, to, req.Amount); err != nil {
			return err
		}

		record := domain.IdempotencyRecord{
			Key:        req.IdempotencyKey,
			UserID:     req.FromUserID,
			Operation:  req.TxType,
			TransferID: &txRef,
			Success:    true,
		}
		if err := tx.Create(&record).Error; err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "recording idempotency outcome", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*ledger.Error); !ok {
			err = ledger.Wrap(ledger.CodeDatabaseError, "transfer transaction", err)
		}
		return nil, err
	}

	out := make([]domain.LedgerEntry, len(entries))
	for i := range entries {
		out[i] = *entries[i]
	}
	return &Result{TransferID: txRef, Entries: out}, nil
}

// lockPair takes the two balance rows in ascending user-id order so two
// opposite-direction transfers cannot deadlock, and returns them as
// (sender, recipient).
func (e *Engine) lockPair(tx *gorm.DB, req Request) (*domain.Balance, *domain.Balance, error) {
	firstID, secondID := req.FromUserID, req.ToUserID
	if secondID.String() < firstID.String() {
		firstID, secondID = secondID, firstID
	}
	first, err := e.Balances.LockForUpdate(tx, firstID, req.AssetSymbol)
	if err != nil {
		return nil, nil, err
	}
	second, err := e.Balances.LockForUpdate(tx, secondID, req.AssetSymbol)
	if err != nil {
		return nil, nil, err
	}
	if first.UserID == req.FromUserID {
		return first, second, nil
	}
	return second, first, nil
}

// replayFromRecord consults the durable record for keys Redis has lost
// (flush, failover). Finding one means the operation already committed.
func (e *Engine) replayFromRecord(ctx context.Context, key string) (*Result, error) {
	var record domain.IdempotencyRecord
	err := e.DB.WithContext(ctx).Where("key = ?", key).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		e.Guard.Abort(ctx, key)
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "idempotency record lookup", err)
	}

	var entries []domain.LedgerEntry
	if record.TransferID != nil {
		if err := e.DB.WithContext(ctx).Where("tx_ref = ?", record.TransferID).Find(&entries).Error; err != nil {
			e.Guard.Abort(ctx, key)
			return nil, ledger.Wrap(ledger.CodeDatabaseError, "loading replayed entries", err)
		}
	}
	res := &Result{Entries: entries, Replayed: true}
	if record.TransferID != nil {
		res.TransferID = *record.TransferID
	}
	body, _ := json.Marshal(res)
	_ = e.Guard.Complete(ctx, key, &idempotency.Outcome{
		TransferID: res.TransferID.String(),
		Success:    true,
		Body:       body,
	})
	return res, nil
}

// replay rebuilds the caller-visible result from a stored outcome.
func replay(out *idempotency.Outcome) (*Result, error) {
	if !out.Success {
		return nil, ledger.E(out.Code, out.Message)
	}
	var res Result
	if len(out.Body) > 0 {
		if err := json.Unmarshal(out.Body, &res); err != nil {
			return nil, ledger.Wrap(ledger.CodeInternalError, "decoding replayed transfer", err)
		}
	} else if out.TransferID != "" {
		id, err := uuid.Parse(out.TransferID)
		if err != nil {
			return nil, ledger.Wrap(ledger.CodeInternalError, "decoding replayed transfer id", err)
		}
		res.TransferID = id
	}
	res.Replayed = true
	return &res, nil
}
