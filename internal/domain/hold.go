package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hold is a reservation against a user's balance for an operation that
// has not finalized externally yet (e.g. a withdrawal submitted to chain
// but unconfirmed). While open it is counted in Balance.LockedAmount.
// Release either settles into a POSTED debit or unlocks with no effect.
type Hold struct {
	HoldID      uuid.UUID  `gorm:"column:hold_id;type:uuid;primaryKey" json:"hold_id"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	AssetSymbol string     `gorm:"column:asset_symbol;type:varchar(16);not null" json:"asset_symbol"`
	Amount      int64      `gorm:"column:amount;not null" json:"amount,string"`
	Reason      string     `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	ReleasedAt  *time.Time `gorm:"column:released_at" json:"released_at"`
	Settled     bool       `gorm:"column:settled;not null;default:false" json:"settled"`
}

func (Hold) TableName() string {
	return "holds"
}

func (h *Hold) BeforeCreate(tx *gorm.DB) error {
	if h.HoldID == uuid.Nil {
		h.HoldID = uuid.New()
	}
	return nil
}

// Open reports whether the hold still counts toward LockedAmount.
func (h *Hold) Open() bool {
	return h.ReleasedAt == nil
}
