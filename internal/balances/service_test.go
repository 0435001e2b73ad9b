package balances

import (
	"context"
	"testing"

	"tng-backend/internal/assets"
	"tng-backend/internal/domain"
	"tng-backend/internal/ledger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupBalancesTest(t *testing.T) (*Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Asset{}, &domain.LedgerEntry{}, &domain.Balance{}, &domain.Hold{}))
	require.NoError(t, assets.Seed(db))

	store := &ledger.Store{DB: db}
	return &Service{DB: db, Store: store, Assets: &assets.Service{DB: db}}, db
}

// fund posts a deposit entry and applies the delta, like the wallet flow does.
func fund(t *testing.T, svc *Service, db *gorm.DB, user uuid.UUID, asset string, amount int64) {
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		b, err := svc.LockForUpdate(tx, user, asset)
		if err != nil {
			return err
		}
		if err := svc.Store.Append(tx, []*domain.LedgerEntry{{
			UserID: user, AssetSymbol: asset, Amount: amount,
			Direction: domain.DirectionCredit, TxType: domain.TxDepositOnchain, TxRef: uuid.New(),
		}}); err != nil {
			return err
		}
		return svc.ApplyDelta(tx, b, amount)
	}))
}

func TestGet_LazyCreatesZeroBalance(t *testing.T) {
	svc, _ := setupBalancesTest(t)
	user := uuid.New()

	b, err := svc.Get(context.Background(), user, "TNG")
	require.NoError(t, err)
	assert.Zero(t, b.AmountCached)
	assert.Zero(t, b.LockedAmount)
	assert.Zero(t, b.Available())
}

func TestGet_UnknownAsset(t *testing.T) {
	svc, _ := setupBalancesTest(t)

	_, err := svc.Get(context.Background(), uuid.New(), "DOGE")
	require.Error(t, err)
	assert.Equal(t, ledger.CodeAssetNotFound, ledger.CodeOf(err))
}

func TestGetAll_ReturnsTouchedAssets(t *testing.T) {
	svc, db := setupBalancesTest(t)
	user := uuid.New()
	fund(t, svc, db, user, "TNG", 1000)
	fund(t, svc, db, user, "SOL", 500)

	list, err := svc.GetAll(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "SOL", list[0].AssetSymbol)
	assert.Equal(t, "TNG", list[1].AssetSymbol)
}

func TestRecalculate_AgreesWithIncremental(t *testing.T) {
	svc, db := setupBalancesTest(t)
	user := uuid.New()
	fund(t, svc, db, user, "TNG", 1000)
	fund(t, svc, db, user, "TNG", 250)

	cached, err := svc.Get(context.Background(), user, "TNG")
	require.NoError(t, err)

	rebuilt, err := svc.Recalculate(context.Background(), user, "TNG")
	require.NoError(t, err)
	assert.Equal(t, cached.AmountCached, rebuilt.AmountCached)
	assert.EqualValues(t, 1250, rebuilt.AmountCached)
	assert.NotNil(t, rebuilt.SyncedAt)
}

func TestRecalculate_CorrectsDrift(t *testing.T) {
	svc, db := setupBalancesTest(t)
	user := uuid.New()
	fund(t, svc, db, user, "TNG", 1000)

	// Corrupt the projection; the entry store stays authoritative.
	require.NoError(t, db.Model(&domain.Balance{}).
		Where("user_id = ? AND asset_symbol = ?", user, "TNG").
		Update("amount_cached", 9999).Error)

	rebuilt, err := svc.Recalculate(context.Background(), user, "TNG")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, rebuilt.AmountCached)
}

func TestApplyDelta_RefusesNegativeBalance(t *testing.T) {
	svc, db := setupBalancesTest(t)
	user := uuid.New()
	fund(t, svc, db, user, "TNG", 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := svc.LockForUpdate(tx, user, "TNG")
		if err != nil {
			return err
		}
		return svc.ApplyDelta(tx, b, -101)
	})
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientBalance, ledger.CodeOf(err))
}

func TestAdjustLock_CannotExceedBalance(t *testing.T) {
	svc, db := setupBalancesTest(t)
	user := uuid.New()
	fund(t, svc, db, user, "TNG", 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := svc.LockForUpdate(tx, user, "TNG")
		if err != nil {
			return err
		}
		return svc.AdjustLock(tx, b, 101)
	})
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientAvailableBalance, ledger.CodeOf(err))
}

func TestApplyDelta_CannotSpendLockedFunds(t *testing.T) {
	svc, db := setupBalancesTest(t)
	user := uuid.New()
	fund(t, svc, db, user, "TNG", 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		b, err := svc.LockForUpdate(tx, user, "TNG")
		if err != nil {
			return err
		}
		if err := svc.AdjustLock(tx, b, 60); err != nil {
			return err
		}
		return svc.ApplyDelta(tx, b, -50)
	})
	require.Error(t, err)
	assert.Equal(t, ledger.CodeInsufficientAvailableBalance, ledger.CodeOf(err))
}
