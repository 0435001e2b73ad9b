package holds

import (
	"context"
	"time"

	"tng-backend/internal/assets"
	"tng-backend/internal/balances"
	"tng-backend/internal/domain"
	"tng-backend/internal/ledger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service tracks reservations against balances for in-flight external
// operations. An open hold makes funds unavailable without recording a
// ledger movement, closing the double-spend window while e.g. an on-chain
// withdrawal is pending.
type Service struct {
	DB       *gorm.DB
	Store    *ledger.Store
	Balances *balances.Service
	Assets   *assets.Service
}

// Open reserves amount against the user's available balance.
func (s *Service) Open(ctx context.Context, userID uuid.UUID, assetSymbol string, amount int64, reason string) (*domain.Hold, error) {
	if userID == uuid.Nil {
		return nil, ledger.E(ledger.CodeInvalidUser, "user is required")
	}
	if amount <= 0 {
		return nil, ledger.E(ledger.CodeInvalidAmount, "amount must be positive")
	}
	if _, err := s.Assets.Get(ctx, assetSymbol); err != nil {
		return nil, err
	}

	var hold *domain.Hold
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.Balances.LockForUpdate(tx, userID, assetSymbol)
		if err != nil {
			return err
		}
		if b.Available() < amount {
			return ledger.E(ledger.CodeInsufficientAvailableBalance, "insufficient available balance")
		}

		h := domain.Hold{
			UserID:      userID,
			AssetSymbol: assetSymbol,
			Amount:      amount,
			Reason:      reason,
		}
		if err := tx.Create(&h).Error; err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "creating hold", err)
		}
		if err := s.Balances.AdjustLock(tx, b, amount); err != nil {
			return err
		}
		hold = &h
		return nil
	})
	if err != nil {
		if _, ok := err.(*ledger.Error); !ok {
			err = ledger.Wrap(ledger.CodeDatabaseError, "hold transaction", err)
		}
		return nil, err
	}
	return hold, nil
}

// Release closes a hold on behalf of userID. With settle=true it
// atomically converts the reservation into a POSTED debit entry and
// drops the lock; with settle=false it drops the lock with no balance
// effect. A hold belonging to another user reads as not found so the
// caller learns nothing about it.
func (s *Service) Release(ctx context.Context, userID, holdID uuid.UUID, settle bool, txType, description string) (*domain.Hold, *domain.LedgerEntry, error) {
	if txType == "" {
		txType = domain.TxWithdrawOnchain
	}

	var hold domain.Hold
	var entry *domain.LedgerEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("hold_id = ?", holdID).First(&hold).Error
		if err == gorm.ErrRecordNotFound {
			return ledger.E(ledger.CodeHoldNotFound, "hold not found")
		}
		if err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "loading hold", err)
		}
		if hold.UserID != userID {
			return ledger.E(ledger.CodeHoldNotFound, "hold not found")
		}
		if !hold.Open() {
			return ledger.E(ledger.CodeHoldAlreadyReleased, "hold already released")
		}

		b, err := s.Balances.LockForUpdate(tx, hold.UserID, hold.AssetSymbol)
		if err != nil {
			return err
		}
		if err := s.Balances.AdjustLock(tx, b, -hold.Amount); err != nil {
			return err
		}

		if settle {
			e := &domain.LedgerEntry{
				UserID:      hold.UserID,
				AssetSymbol: hold.AssetSymbol,
				Amount:      hold.Amount,
				Direction:   domain.DirectionDebit,
				TxType:      txType,
				TxRef:       uuid.New(),
				Description: description,
			}
			if err := s.Store.Append(tx, []*domain.LedgerEntry{e}); err != nil {
				return err
			}
			if err := s.Balances.ApplyDelta(tx, b, -hold.Amount); err != nil {
				return err
			}
			entry = e
		}

		now := time.Now().UTC()
		hold.ReleasedAt = &now
		hold.Settled = settle
		if err := tx.Save(&hold).Error; err != nil {
			return ledger.Wrap(ledger.CodeDatabaseError, "saving released hold", err)
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*ledger.Error); !ok {
			err = ledger.Wrap(ledger.CodeDatabaseError, "hold release transaction", err)
		}
		return nil, nil, err
	}
	return &hold, entry, nil
}

// Get loads one hold.
func (s *Service) Get(ctx context.Context, holdID uuid.UUID) (*domain.Hold, error) {
	var hold domain.Hold
	err := s.DB.WithContext(ctx).Where("hold_id = ?", holdID).First(&hold).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ledger.E(ledger.CodeHoldNotFound, "hold not found")
	}
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "loading hold", err)
	}
	return &hold, nil
}
