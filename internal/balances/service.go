package balances

import (
	"context"
	"time"

	"tng-backend/internal/assets"
	"tng-backend/internal/domain"
	"tng-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service maintains the materialized Balance projection: fast reads of
// total/locked/available per (user, asset), kept in step incrementally by
// every committed operation and rebuildable from the entry store.
type Service struct {
	DB     *gorm.DB
	Store  *ledger.Store
	Assets *assets.Service
}

// Get returns the cached balance, creating the zero row lazily on first touch.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, assetSymbol string) (*domain.Balance, error) {
	if _, err := s.Assets.Get(ctx, assetSymbol); err != nil {
		return nil, err
	}
	var b *domain.Balance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		b, err = s.LockForUpdate(tx, userID, assetSymbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetAll returns every balance row the user has touched.
func (s *Service) GetAll(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	var out []domain.Balance
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("asset_symbol").
		Find(&out).Error
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "listing balances", err)
	}
	return out, nil
}

// Recalculate rebuilds the cached aggregate by replaying POSTED entries
// and re-summing open holds. Under correct operation it agrees with the
// incrementally maintained value; disagreement is drift and is corrected
// (and logged) here.
func (s *Service) Recalculate(ctx context.Context, userID uuid.UUID, assetSymbol string) (*domain.Balance, error) {
	if _, err := s.Assets.Get(ctx, assetSymbol); err != nil {
		return nil, err
	}
	var result *domain.Balance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.LockForUpdate(tx, userID, assetSymbol)
		if err != nil {
			return err
		}

		total, err := s.Store.SignedSum(ctx, tx, userID, assetSymbol)
		if err != nil {
			return err
		}

		var locked int64
		var holds []domain.Hold
		if err := tx.Where("user_id = ? AND asset_symbol = ? AND released_at IS NULL", userID, assetSymbol).
			Find(&holds).Error; err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "summing open holds", err)
		}
		for i := range holds {
			locked += holds[i].Amount
		}

		if b.AmountCached != total || b.LockedAmount != locked {
			log.Error().
				Str("user_id", userID.String()).
				Str("asset", assetSymbol).
				Int64("cached", b.AmountCached).
				Int64("replayed", total).
				Int64("locked_cached", b.LockedAmount).
				Int64("locked_replayed", locked).
				Msg("balance drift corrected by recalculation")
		}

		now := time.Now().UTC()
		b.AmountCached = total
		b.LockedAmount = locked
		b.LastUpdated = now
		b.SyncedAt = &now
		if err := tx.Save(b).Error; err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "saving recalculated balance", err)
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LockForUpdate fetches the balance row inside the caller's transaction,
// creating it lazily, and takes a row lock on postgres so two concurrent
// transfers cannot both read a stale available amount. SQLite (tests) is
// single-writer and needs no lock clause.
func (s *Service) LockForUpdate(tx *gorm.DB, userID uuid.UUID, assetSymbol string) (*domain.Balance, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var b domain.Balance
	err := q.Where("user_id = ? AND asset_symbol = ?", userID, assetSymbol).First(&b).Error
	if err == gorm.ErrRecordNotFound {
		b = domain.Balance{
			UserID:      userID,
			AssetSymbol: assetSymbol,
			LastUpdated: time.Now().UTC(),
		}
		if err := tx.Create(&b).Error; err != nil {
			return nil, ledger.Wrap(ledger.CodeDatabaseError, "creating balance row", err)
		}
		return &b, nil
	}
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "loading balance row", err)
	}
	return &b, nil
}

// ApplyDelta mutates a locked balance row inside the caller's transaction.
// The total must never go negative or drop below the locked portion.
func (s *Service) ApplyDelta(tx *gorm.DB, b *domain.Balance, delta int64) error {
	next := b.AmountCached + delta
	if next < 0 {
		return ledger.E(ledger.CodeInsufficientBalance, "balance would go negative")
	}
	if next < b.LockedAmount {
		return ledger.E(ledger.CodeInsufficientAvailableBalance, "balance would drop below locked amount")
	}
	b.AmountCached = next
	b.LastUpdated = time.Now().UTC()
	if err := tx.Save(b).Error; err != nil {
		return ledger.Wrap(ledger.CodeDatabaseError, "saving balance", err)
	}
	return nil
}

// AdjustLock changes the locked portion (open/release of holds) inside
// the caller's transaction.
func (s *Service) AdjustLock(tx *gorm.DB, b *domain.Balance, delta int64) error {
	next := b.LockedAmount + delta
	if next < 0 {
		return ledger.E(ledger.CodeInternalError, "locked amount would go negative")
	}
	if next > b.AmountCached {
		return ledger.E(ledger.CodeInsufficientAvailableBalance, "locked amount would exceed balance")
	}
	b.LockedAmount = next
	b.LastUpdated = time.Now().UTC()
	if err := tx.Save(b).Error; err != nil {
		return ledger.Wrap(ledger.CodeDatabaseError, "saving balance lock", err)
	}
	return nil
}
