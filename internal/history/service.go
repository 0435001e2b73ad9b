package history

import (
	"context"
	"strconv"
	"time"

	"tng-backend/internal/domain"
	"tng-backend/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service is the read path over the entry store: paginated, filterable
// history per user, with the other party of an internal transfer resolved
// from the counterpart entry.
type Service struct {
	DB    *gorm.DB
	Store *ledger.Store
}

// EntryView is one history row. Amounts cross the wire as strings; the
// counterpart user id is only surfaced for double-entry movements.
type EntryView struct {
	EntryID            uuid.UUID   `json:"entry_id"`
	AssetSymbol        string      `json:"asset_symbol"`
	Amount             string      `json:"amount"`
	Direction          string      `json:"direction"`
	TxType             string      `json:"tx_type"`
	TxRef              uuid.UUID   `json:"tx_ref"`
	Status             string      `json:"status"`
	Description        string      `json:"description,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	CounterpartyUserID *uuid.UUID  `json:"counterparty_user_id,omitempty"`
}

// Page is an offset-paginated history slice.
type Page struct {
	Entries []EntryView `json:"entries"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Total   int64       `json:"total"`
}

// GetUserTransactionHistory returns the user's entries newest-first.
// Pure read: never touches balances or holds.
func (s *Service) GetUserTransactionHistory(ctx context.Context, userID uuid.UUID, assetSymbol string, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	entries, total, err := s.Store.ListByUser(ctx, userID, assetSymbol, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	counterparts, err := s.resolveCounterparts(ctx, userID, entries)
	if err != nil {
		return nil, err
	}

	views := make([]EntryView, len(entries))
	for i := range entries {
		e := &entries[i]
		v := EntryView{
			EntryID:     e.EntryID,
			AssetSymbol: e.AssetSymbol,
			Amount:      strconv.FormatInt(e.Amount, 10),
			Direction:   e.Direction,
			TxType:      e.TxType,
			TxRef:       e.TxRef,
			Status:      e.Status,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}
		if other, ok := counterparts[e.TxRef]; ok {
			id := other
			v.CounterpartyUserID = &id
		}
		views[i] = v
	}

	return &Page{Entries: views, Page: page, Limit: limit, Total: total}, nil
}

// resolveCounterparts maps txRef -> the other user of each double-entry
// group in one query instead of per-row lookups.
func (s *Service) resolveCounterparts(ctx context.Context, userID uuid.UUID, entries []domain.LedgerEntry) (map[uuid.UUID]uuid.UUID, error) {
	refs := make([]uuid.UUID, 0, len(entries))
	for i := range entries {
		if ledger.DoubleEntry(entries[i].TxType) {
			refs = append(refs, entries[i].TxRef)
		}
	}
	out := map[uuid.UUID]uuid.UUID{}
	if len(refs) == 0 {
		return out, nil
	}

	var others []domain.LedgerEntry
	err := s.DB.WithContext(ctx).
		Select("tx_ref, user_id").
		Where("tx_ref IN ? AND user_id <> ?", refs, userID).
		Find(&others).Error
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "resolving counterpart entries", err)
	}
	for i := range others {
		out[others[i].TxRef] = others[i].UserID
	}
	return out, nil
}
