package holds

import (
	"context"
	"testing"

	"tng-backend/internal/assets"
	"tng-backend/internal/balances"
	"tng-backend/internal/domain"
	"tng-backend/internal/ledger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupHoldsTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Asset{}, &domain.LedgerEntry{}, &domain.Balance{}, &domain.Hold{}))
	require.NoError(t, assets.Seed(db))

	store := &ledger.Store{DB: db}
	assetSvc := &assets.Service{DB: db}
	balanceSvc := &balances.Service{DB: db, Store: store, Assets: assetSvc}
	return &Service{DB: db, Store: store, Balances: balanceSvc, Assets: assetSvc}, db
}

func fund(t *testing.T, s *Service, db *gorm.DB, user uuid.UUID, asset string, amount int64) {
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		b, err := s.Balances.LockForUpdate(tx, user, asset)
		if err != nil {
			return err
		}
		if err := s.Store.Append(tx, []*domain.LedgerEntry{{
			UserID: user, AssetSymbol: asset, Amount: amount,
			Direction: domain.DirectionCredit, TxType: domain.TxDepositOnchain, TxRef: uuid.New(),
		}}); err != nil {
			return err
		}
		return s.Balances.ApplyDelta(tx, b, amount)
	}))
}

func balanceOf(t *testing.T, s *Service, user uuid.UUID, asset string) *domain.Balance {
	b, err := s.Balances.Get(context.Background(), user, asset)
	require.NoError(t, err)
	return b
}

// A 200 TNG hold reduces available by 200 without touching the total.
func TestOpen_LocksAvailable(t *testing.T) {
	s, db := setupHoldsTest(t)
	user := uuid.New()
	fund(t, s, db, user, "TNG", 1000)

	hold, err := s.Open(context.Background(), user, "TNG", 200, domain.TxWithdrawOnchain)
	require.NoError(t, err)
	assert.True(t, hold.Open())

	b := balanceOf(t, s, user, "TNG")
	assert.EqualValues(t, 1000, b.AmountCached)
	assert.EqualValues(t, 200, b.LockedAmount)
	assert.EqualValues(t, 800, b.Available())
}

func TestOpen_InsufficientAvailable(t *testing.T) {
	s, db := setupHoldsTest(t)
	user := uuid.New()
	fund(t, s, db, user, "TNG", 100)

	_, err := s.Open(context.Background(), user, "TNG", 101, domain.TxWithdrawOnchain)
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientAvailableBalance, ledger.CodeOf(err))
}

func TestOpen_CountsExistingHolds(t *testing.T) {
	s, db := setupHoldsTest(t)
	user := uuid.New()
	fund(t, s, db, user, "TNG", 100)

	_, err := s.Open(context.Background(), user, "TNG", 70, domain.TxWithdrawOnchain)
	require.NoError(t, err)
	_, err = s.Open(context.Background(), user, "TNG", 40, domain.TxWithdrawOnchain)
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientAvailableBalance, ledger.CodeOf(err))
}

// Releasing with settle=false restores available with no balance effect.
func TestRelease_Unsettled(t *testing.T) {
	s, db := setupHoldsTest(t)
	user := uuid.New()
	fund(t, s, db, user, "TNG", 1000)

	hold, err := s.Open(context.Background(), user, "TNG", 200, domain.TxWithdrawOnchain)
	require.NoError(t, err)

	released, entry, err := s.Release(context.Background(), user, hold.HoldID, false, "", "")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.False(t, released.Settled)
	assert.NotNil(t, released.ReleasedAt)

	b := balanceOf(t, s, user, "TNG")
	assert.EqualValues(t, 1000, b.AmountCached)
	assert.EqualValues(t, 1000, b.Available())

	var count int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).
		Where("direction = ?", domain.DirectionDebit).Count(&count).Error)
	assert.Zero(t, count)
}

// Releasing with settle=true posts a debit and reduces the total by the
// held amount, atomically with the unlock.
func TestRelease_Settled(t *testing.T) {
	s, db := setupHoldsTest(t)
	user := uuid.New()
	fund(t, s, db, user, "TNG", 1000)

	hold, err := s.Open(context.Background(), user, "TNG", 200, domain.TxWithdrawOnchain)
	require.NoError(t, err)

	released, entry, err := s.Release(context.Background(), user, hold.HoldID, true, domain.TxWithdrawOnchain, "withdrawal confirmed")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, released.Settled)
	assert.Equal(t, domain.StatusPosted, entry.Status)
	assert.Equal(t, domain.DirectionDebit, entry.Direction)
	assert.EqualValues(t, 200, entry.Amount)

	b := balanceOf(t, s, user, "TNG")
	assert.EqualValues(t, 800, b.AmountCached)
	assert.Zero(t, b.LockedAmount)
	assert.EqualValues(t, 800, b.Available())
}

func TestRelease_NotFoundAndDoubleRelease(t *testing.T) {
	s, db := setupHoldsTest(t)
	user := uuid.New()
	fund(t, s, db, user, "TNG", 1000)

	_, _, err := s.Release(context.Background(), user, uuid.New(), false, "", "")
	assert.Equal(t, ledger.CodeHoldNotFound, ledger.CodeOf(err))

	hold, err := s.Open(context.Background(), user, "TNG", 200, domain.TxWithdrawOnchain)
	require.NoError(t, err)
	_, _, err = s.Release(context.Background(), user, hold.HoldID, false, "", "")
	require.NoError(t, err)

	_, _, err = s.Release(context.Background(), user, hold.HoldID, true, "", "")
	require.Error(t, err)
	assert.Equal(t, ledger.CodeHoldAlreadyReleased, ledger.CodeOf(err))

	// Double release had no second effect.
	b := balanceOf(t, s, user, "TNG")
	assert.EqualValues(t, 1000, b.AmountCached)
}

// Another user's hold reads as not found and cannot be settled or
// cancelled; only the owner can close it.
func TestRelease_RefusesOtherUsersHold(t *testing.T) {
	s, db := setupHoldsTest(t)
	owner, stranger := uuid.New(), uuid.New()
	fund(t, s, db, owner, "TNG", 1000)

	hold, err := s.Open(context.Background(), owner, "TNG", 200, domain.TxWithdrawOnchain)
	require.NoError(t, err)

	_, _, err = s.Release(context.Background(), stranger, hold.HoldID, true, "", "")
	require.Error(t, err)
	assert.Equal(t, ledger.CodeHoldNotFound, ledger.CodeOf(err))

	_, _, err = s.Release(context.Background(), stranger, hold.HoldID, false, "", "")
	require.Error(t, err)
	assert.Equal(t, ledger.CodeHoldNotFound, ledger.CodeOf(err))

	// The hold is still open and the owner's funds untouched.
	b := balanceOf(t, s, owner, "TNG")
	assert.EqualValues(t, 1000, b.AmountCached)
	assert.EqualValues(t, 200, b.LockedAmount)

	_, _, err = s.Release(context.Background(), owner, hold.HoldID, false, "", "")
	require.NoError(t, err)
}
