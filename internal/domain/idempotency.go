package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// IdempotencyRecord maps a caller-supplied key to the outcome of the
// operation it guarded. The row is written inside the same transaction
// as the ledger entries, so a committed operation always has its record:
// a replay that misses the Redis fast path still finds the outcome here
// and the unique key prevents re-execution.
type IdempotencyRecord struct {
	Key        string         `gorm:"column:key;type:varchar(128);primaryKey" json:"key"`
	UserID     uuid.UUID      `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Operation  string         `gorm:"column:operation;type:varchar(32);not null" json:"operation"`
	TransferID *uuid.UUID     `gorm:"column:transfer_id;type:uuid" json:"transfer_id"`
	Success    bool           `gorm:"column:success;not null" json:"success"`
	Result     datatypes.JSON `gorm:"column:result" json:"result"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
