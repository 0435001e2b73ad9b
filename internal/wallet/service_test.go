package wallet

import (
	"context"
	"testing"
	"time"

	"tng-backend/internal/assets"
	"tng-backend/internal/balances"
	"tng-backend/internal/domain"
	"tng-backend/internal/holds"
	"tng-backend/internal/idempotency"
	"tng-backend/internal/ledger"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupWalletTest(t *testing.T) (*Service, *gorm.DB, *miniredis.Miniredis) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Asset{}, &domain.LedgerEntry{}, &domain.Balance{},
		&domain.Hold{}, &domain.IdempotencyRecord{},
	))
	require.NoError(t, assets.Seed(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := &ledger.Store{DB: db}
	assetSvc := &assets.Service{DB: db}
	balanceSvc := &balances.Service{DB: db, Store: store, Assets: assetSvc}
	holdSvc := &holds.Service{DB: db, Store: store, Balances: balanceSvc, Assets: assetSvc}
	guard := &idempotency.Guard{Rdb: rdb, TTL: 24 * time.Hour}

	return &Service{DB: db, Store: store, Balances: balanceSvc, Assets: assetSvc, Holds: holdSvc, Guard: guard}, db, mr
}

func TestDeposit_CreditsOnce(t *testing.T) {
	s, db, _ := setupWalletTest(t)
	user := uuid.New()
	ctx := context.Background()

	res, err := s.Deposit(ctx, user, "SOL", 2_000_000_000, "sig-abc", "chain deposit")
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	b, err := s.Balances.Get(ctx, user, "SOL")
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000_000, b.AmountCached)

	// Watcher retry with the same signature replays, no second credit.
	again, err := s.Deposit(ctx, user, "SOL", 2_000_000_000, "sig-abc", "chain deposit")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.TxRef, again.TxRef)

	var count int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeposit_ReplayAfterRedisLoss(t *testing.T) {
	s, db, mr := setupWalletTest(t)
	user := uuid.New()
	ctx := context.Background()

	res, err := s.Deposit(ctx, user, "SOL", 500, "sig-abc", "")
	require.NoError(t, err)

	mr.FlushAll()

	again, err := s.Deposit(ctx, user, "SOL", 500, "sig-abc", "")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.TxRef, again.TxRef)

	var count int64
	require.NoError(t, db.Model(&domain.LedgerEntry{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeposit_Validation(t *testing.T) {
	s, _, _ := setupWalletTest(t)
	ctx := context.Background()

	_, err := s.Deposit(ctx, uuid.New(), "DOGE", 5, "sig", "")
	assert.Equal(t, ledger.CodeAssetNotFound, ledger.CodeOf(err))

	_, err = s.Deposit(ctx, uuid.New(), "SOL", 0, "sig", "")
	assert.Equal(t, ledger.CodeInvalidAmount, ledger.CodeOf(err))

	_, err = s.Deposit(ctx, uuid.Nil, "SOL", 5, "sig", "")
	assert.Equal(t, ledger.CodeInvalidUser, ledger.CodeOf(err))
}

// Full withdrawal round trip: request locks, confirm settles into a
// posted debit, and the funds were unavailable in between.
func TestWithdrawal_ConfirmFlow(t *testing.T) {
	s, _, _ := setupWalletTest(t)
	user := uuid.New()
	ctx := context.Background()

	_, err := s.Deposit(ctx, user, "TNG", 1000, "sig-1", "")
	require.NoError(t, err)

	hold, err := s.RequestWithdrawal(ctx, user, "TNG", 700)
	require.NoError(t, err)

	b, err := s.Balances.Get(ctx, user, "TNG")
	require.NoError(t, err)
	assert.EqualValues(t, 300, b.Available())

	// The locked portion cannot be withdrawn again.
	_, err = s.RequestWithdrawal(ctx, user, "TNG", 500)
	assert.Equal(t, ledger.CodeInsufficientAvailableBalance, ledger.CodeOf(err))

	released, entry, err := s.ConfirmWithdrawal(ctx, user, hold.HoldID, "sig-out")
	require.NoError(t, err)
	assert.True(t, released.Settled)
	require.NotNil(t, entry)
	assert.Equal(t, domain.TxWithdrawOnchain, entry.TxType)

	b, err = s.Balances.Get(ctx, user, "TNG")
	require.NoError(t, err)
	assert.EqualValues(t, 300, b.AmountCached)
	assert.Zero(t, b.LockedAmount)
}

func TestWithdrawal_CancelFlow(t *testing.T) {
	s, _, _ := setupWalletTest(t)
	user := uuid.New()
	ctx := context.Background()

	_, err := s.Deposit(ctx, user, "TNG", 1000, "sig-1", "")
	require.NoError(t, err)

	hold, err := s.RequestWithdrawal(ctx, user, "TNG", 700)
	require.NoError(t, err)

	released, err := s.CancelWithdrawal(ctx, user, hold.HoldID)
	require.NoError(t, err)
	assert.False(t, released.Settled)

	b, err := s.Balances.Get(ctx, user, "TNG")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, b.AmountCached)
	assert.EqualValues(t, 1000, b.Available())
}

// A hold can only be confirmed or cancelled by the user it belongs to.
func TestWithdrawal_OtherUserCannotRelease(t *testing.T) {
	s, _, _ := setupWalletTest(t)
	victim, attacker := uuid.New(), uuid.New()
	ctx := context.Background()

	_, err := s.Deposit(ctx, victim, "TNG", 1000, "sig-1", "")
	require.NoError(t, err)
	hold, err := s.RequestWithdrawal(ctx, victim, "TNG", 700)
	require.NoError(t, err)

	_, _, err = s.ConfirmWithdrawal(ctx, attacker, hold.HoldID, "sig-out")
	require.Error(t, err)
	assert.Equal(t, ledger.CodeHoldNotFound, ledger.CodeOf(err))

	_, err = s.CancelWithdrawal(ctx, attacker, hold.HoldID)
	require.Error(t, err)
	assert.Equal(t, ledger.CodeHoldNotFound, ledger.CodeOf(err))

	// The victim's balance and the reservation are intact.
	b, err := s.Balances.Get(ctx, victim, "TNG")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, b.AmountCached)
	assert.EqualValues(t, 700, b.LockedAmount)
}
