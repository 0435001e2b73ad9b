package ledger

import (
	"context"
	"time"

	"tng-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Store is the append-only record of every asset movement. The Balance
// projection is derived from it and never the other way around.
type Store struct {
	DB *gorm.DB
}

// doubleEntry lists the tx types whose entries must net to zero per asset
// within one txRef. On-chain deposits/withdrawals are single-sided.
var doubleEntry = map[string]bool{
	domain.TxTransferInternal: true,
	domain.TxReward:           true,
	domain.TxLendingSupply:    true,
	domain.TxLendingWithdraw:  true,
	domain.TxLendingBorrow:    true,
	domain.TxLendingRepay:     true,
}

// DoubleEntry reports whether entries of this tx type come in net-zero
// pairs (as opposed to single-sided on-chain movements).
func DoubleEntry(txType string) bool {
	return doubleEntry[txType]
}

// Append writes one operation's entry group and marks every entry POSTED,
// all inside the caller's transaction so the group commits or rolls back
// as a unit. A net-zero violation for a double-entry group is a
// programming error upstream; it is asserted here and never committed.
func (s *Store) Append(tx *gorm.DB, entries []*domain.LedgerEntry) error {
	if len(entries) == 0 {
		return E(CodeInternalError, "empty entry group")
	}
	if err := checkConservation(entries); err != nil {
		log.Error().
			Str("tx_ref", entries[0].TxRef.String()).
			Str("tx_type", entries[0].TxType).
			Msg("ledger imbalance rejected before commit")
		return err
	}

	now := time.Now().UTC()
	for _, e := range entries {
		if e.Amount <= 0 {
			return E(CodeInvalidAmount, "entry amount must be positive")
		}
		e.Status = domain.StatusPosted
		e.PostedAt = &now
	}
	if err := tx.Create(entries).Error; err != nil {
		return Wrap(CodeDatabaseError, "appending ledger entries", err)
	}
	return nil
}

// checkConservation verifies the double-entry invariant: per asset, the
// signed sum of a group's entries is exactly zero.
func checkConservation(entries []*domain.LedgerEntry) error {
	if !doubleEntry[entries[0].TxType] {
		return nil
	}
	sums := map[string]int64{}
	for _, e := range entries {
		sums[e.AssetSymbol] += e.SignedAmount()
	}
	for symbol, sum := range sums {
		if sum != 0 {
			return E(CodeLedgerImbalance, "entries for "+symbol+" do not net to zero")
		}
	}
	return nil
}

// ListByUser returns the user's entries newest-first with an optional
// asset filter, plus the total row count for pagination.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID, assetSymbol string, limit, offset int) ([]domain.LedgerEntry, int64, error) {
	q := s.DB.WithContext(ctx).Model(&domain.LedgerEntry{}).Where("user_id = ?", userID)
	if assetSymbol != "" {
		q = q.Where("asset_symbol = ?", assetSymbol)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, Wrap(CodeDatabaseError, "counting ledger entries", err)
	}

	var entries []domain.LedgerEntry
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, Wrap(CodeDatabaseError, "listing ledger entries", err)
	}
	return entries, total, nil
}

// FindCounterpart resolves the other side of a double-entry group: same
// txRef, the given direction. Used by the history API to surface the
// opposite party of an internal transfer.
func (s *Store) FindCounterpart(ctx context.Context, txRef uuid.UUID, direction string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	err := s.DB.WithContext(ctx).
		Where("tx_ref = ? AND direction = ?", txRef, direction).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, Wrap(CodeDatabaseError, "resolving counterpart entry", err)
	}
	return &entry, nil
}

// SignedSum replays every POSTED entry for (user, asset). Balance
// recalculation is built on this.
func (s *Store) SignedSum(ctx context.Context, db *gorm.DB, userID uuid.UUID, assetSymbol string) (int64, error) {
	if db == nil {
		db = s.DB.WithContext(ctx)
	}
	var rows []domain.LedgerEntry
	err := db.
		Where("user_id = ? AND asset_symbol = ? AND status = ?", userID, assetSymbol, domain.StatusPosted).
		Find(&rows).Error
	if err != nil {
		return 0, Wrap(CodeDatabaseError, "replaying ledger entries", err)
	}
	var sum int64
	for i := range rows {
		sum += rows[i].SignedAmount()
	}
	return sum, nil
}
