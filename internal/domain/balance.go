package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Balance is the materialized aggregate per (user, asset), derived from
// POSTED ledger entries. It is a rebuildable projection, never the source
// of truth: AmountCached must equal the signed sum of POSTED entries and
// can be recomputed from them at any time.
type Balance struct {
	BalanceID    uuid.UUID  `gorm:"column:balance_id;type:uuid;primaryKey" json:"balance_id"`
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_balance_user_asset" json:"user_id"`
	AssetSymbol  string     `gorm:"column:asset_symbol;type:varchar(16);not null;uniqueIndex:idx_balance_user_asset" json:"asset_symbol"`
	AmountCached int64      `gorm:"column:amount_cached;not null;default:0" json:"amount_cached,string"`
	LockedAmount int64      `gorm:"column:locked_amount;not null;default:0" json:"locked_amount,string"`
	LastUpdated  time.Time  `gorm:"column:last_updated" json:"last_updated"`
	SyncedAt     *time.Time `gorm:"column:synced_at" json:"synced_at"`
}

func (Balance) TableName() string {
	return "balances"
}

func (b *Balance) BeforeCreate(tx *gorm.DB) error {
	if b.BalanceID == uuid.Nil {
		b.BalanceID = uuid.New()
	}
	return nil
}

// Available is the spendable portion: total minus open holds.
func (b *Balance) Available() int64 {
	return b.AmountCached - b.LockedAmount
}
