package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry direction: every movement is one side of the books.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

// Entry status lifecycle: PENDING -> POSTED | FAILED, terminal after that.
const (
	StatusPending = "PENDING"
	StatusPosted  = "POSTED"
	StatusFailed  = "FAILED"
)

// Transaction types. Internal transfers and rewards are double-entry
// (paired entries net to zero per asset); on-chain deposits/withdrawals
// are single-sided because the counterpart lives on the blockchain.
const (
	TxTransferInternal = "TRANSFER_INTERNAL"
	TxDepositOnchain   = "DEPOSIT_ONCHAIN"
	TxWithdrawOnchain  = "WITHDRAW_ONCHAIN"
	TxReward           = "REWARD"
	TxLendingSupply    = "LENDING_SUPPLY"
	TxLendingWithdraw  = "LENDING_WITHDRAW"
	TxLendingBorrow    = "LENDING_BORROW"
	TxLendingRepay     = "LENDING_REPAY"
)

// LedgerEntry is one immutable movement of an asset for one user.
// Append-only: after creation only Status (and PostedAt) may change,
// and only PENDING -> POSTED or PENDING -> FAILED.
type LedgerEntry struct {
	EntryID     uuid.UUID      `gorm:"column:entry_id;type:uuid;primaryKey" json:"entry_id"`
	UserID      uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	AssetSymbol string         `gorm:"column:asset_symbol;type:varchar(16);not null;index" json:"asset_symbol"`
	Amount      int64          `gorm:"column:amount;not null" json:"amount,string"`
	Direction   string         `gorm:"column:direction;type:varchar(8);not null" json:"direction"`
	TxType      string         `gorm:"column:tx_type;type:varchar(32);not null" json:"tx_type"`
	TxRef       uuid.UUID      `gorm:"column:tx_ref;type:uuid;not null;index" json:"tx_ref"`
	Status      string         `gorm:"column:status;type:varchar(8);not null;default:PENDING" json:"status"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at;index" json:"created_at"`
	PostedAt    *time.Time     `gorm:"column:posted_at" json:"posted_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.EntryID == uuid.Nil {
		e.EntryID = uuid.New()
	}
	return nil
}

// SignedAmount is the balance effect of the entry: CREDIT positive, DEBIT negative.
func (e *LedgerEntry) SignedAmount() int64 {
	if e.Direction == DirectionDebit {
		return -e.Amount
	}
	return e.Amount
}
