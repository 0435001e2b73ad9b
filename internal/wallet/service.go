package wallet

import (
	"context"
	"encoding/json"

	"tng-backend/internal/assets"
	"tng-backend/internal/balances"
	"tng-backend/internal/domain"
	"tng-backend/internal/holds"
	"tng-backend/internal/idempotency"
	"tng-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service is the off-chain half of deposits and withdrawals. The chain
// watcher calls Deposit once a transaction is confirmed; withdrawals go
// through a hold so the funds are unavailable while the on-chain side is
// pending, then settle or cancel.
type Service struct {
	DB       *gorm.DB
	Store    *ledger.Store
	Balances *balances.Service
	Assets   *assets.Service
	Holds    *holds.Service
	Guard    *idempotency.Guard
}

// DepositResult is returned to the watcher and replayed on retries.
type DepositResult struct {
	EntryID  uuid.UUID `json:"entry_id"`
	TxRef    uuid.UUID `json:"tx_ref"`
	Replayed bool      `json:"replayed,omitempty"`
}

// Deposit credits a confirmed on-chain deposit: one POSTED CREDIT entry
// plus the balance delta, keyed by the transaction signature so watcher
// retries credit exactly once.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, assetSymbol string, amount int64, signature, description string) (*DepositResult, error) {
	if userID == uuid.Nil {
		return nil, ledger.E(ledger.CodeInvalidUser, "user is required")
	}
	if amount <= 0 {
		return nil, ledger.E(ledger.CodeInvalidAmount, "amount must be positive")
	}
	if signature == "" {
		return nil, ledger.E(ledger.CodeInvalidAmount, "transaction signature is required")
	}
	if _, err := s.Assets.Get(ctx, assetSymbol); err != nil {
		return nil, err
	}

	key := "deposit:" + signature
	if prior, err := s.Guard.Begin(ctx, key); err != nil {
		return nil, err
	} else if prior != nil {
		return replayDeposit(prior)
	}

	// Redis can lose the key (flush, failover); the durable record still
	// proves the deposit was credited, so replay instead of re-crediting.
	var prior domain.IdempotencyRecord
	ferr := s.DB.WithContext(ctx).Where("key = ?", key).First(&prior).Error
	if ferr == nil && prior.TransferID != nil {
		res := &DepositResult{TxRef: *prior.TransferID, Replayed: true}
		var e domain.LedgerEntry
		if s.DB.WithContext(ctx).Where("tx_ref = ?", prior.TransferID).First(&e).Error == nil {
			res.EntryID = e.EntryID
		}
		body, _ := json.Marshal(res)
		_ = s.Guard.Complete(ctx, key, &idempotency.Outcome{TransferID: prior.TransferID.String(), Success: true, Body: body})
		return res, nil
	}
	if ferr != nil && ferr != gorm.ErrRecordNotFound {
		s.Guard.Abort(ctx, key)
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "deposit idempotency lookup", ferr)
	}

	txRef := uuid.New()
	entry := &domain.LedgerEntry{
		UserID:      userID,
		AssetSymbol: assetSymbol,
		Amount:      amount,
		Direction:   domain.DirectionCredit,
		TxType:      domain.TxDepositOnchain,
		TxRef:       txRef,
		Description: description,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.IdempotencyRecord
		ferr := tx.Where("key = ?", key).First(&existing).Error
		if ferr == nil {
			return ledger.E(ledger.CodeDuplicateIdempotencyKey, "deposit already credited")
		}
		if ferr != gorm.ErrRecordNotFound {
			return ledger.Wrap(ledger.CodeDatabaseError, "deposit idempotency lookup", ferr)
		}

		b, err := s.Balances.LockForUpdate(tx, userID, assetSymbol)
		if err != nil {
			return err
		}
		if err := s.Store.Append(tx, []*domain.LedgerEntry{entry}); err != nil {
			return err
		}
		if err := s.Balances.ApplyDelta(tx, b, amount); err != nil {
			return err
		}

		record := domain.IdempotencyRecord{
			Key:        key,
			UserID:     userID,
			Operation:  domain.TxDepositOnchain,
			TransferID: &txRef,
			Success:    true,
		}
		if err := tx.Create(&record).Error; err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "recording deposit outcome", err)
		}
		return nil
	})
	if err != nil {
		code := ledger.CodeOf(err)
		if code.Integrity() {
			s.Guard.Abort(ctx, key)
			log.Error().Err(err).Str("signature", signature).Msg("deposit failed with integrity error")
		} else {
			s.Guard.Abort(ctx, key)
		}
		if _, ok := err.(*ledger.Error); !ok {
			err = ledger.Wrap(ledger.CodeDatabaseError, "deposit transaction", err)
		}
		return nil, err
	}

	res := &DepositResult{EntryID: entry.EntryID, TxRef: txRef}
	body, _ := json.Marshal(res)
	_ = s.Guard.Complete(ctx, key, &idempotency.Outcome{
		TransferID: txRef.String(),
		Success:    true,
		Body:       body,
	})
	return res, nil
}

// RequestWithdrawal reserves the amount behind a hold until the on-chain
// transaction confirms or fails.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, assetSymbol string, amount int64) (*domain.Hold, error) {
	return s.Holds.Open(ctx, userID, assetSymbol, amount, domain.TxWithdrawOnchain)
}

// ConfirmWithdrawal settles the caller's hold into a POSTED debit once
// the chain transaction is confirmed.
func (s *Service) ConfirmWithdrawal(ctx context.Context, userID, holdID uuid.UUID, signature string) (*domain.Hold, *domain.LedgerEntry, error) {
	description := "withdrawal confirmed"
	if signature != "" {
		description = "withdrawal confirmed: " + signature
	}
	return s.Holds.Release(ctx, userID, holdID, true, domain.TxWithdrawOnchain, description)
}

// CancelWithdrawal unlocks the caller's hold with no balance effect
// after the chain transaction failed or was abandoned.
func (s *Service) CancelWithdrawal(ctx context.Context, userID, holdID uuid.UUID) (*domain.Hold, error) {
	hold, _, err := s.Holds.Release(ctx, userID, holdID, false, domain.TxWithdrawOnchain, "withdrawal cancelled")
	return hold, err
}

func replayDeposit(out *idempotency.Outcome) (*DepositResult, error) {
	if !out.Success {
		return nil, ledger.E(out.Code, out.Message)
	}
	var res DepositResult
	if len(out.Body) > 0 {
		if err := json.Unmarshal(out.Body, &res); err != nil {
			return nil, ledger.Wrap(ledger.CodeInternalError, "decoding replayed deposit", err)
		}
	}
	res.Replayed = true
	return &res, nil
}
