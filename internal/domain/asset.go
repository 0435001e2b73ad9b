package domain

import (
	"time"
)

// Asset is immutable reference data for one fungible unit of value.
// Amounts everywhere in the ledger are integers in the asset's smallest
// unit (lamports for SOL, micro-units for USDC), never floats.
type Asset struct {
	Symbol    string    `gorm:"column:symbol;type:varchar(16);primaryKey" json:"symbol"`
	Name      string    `gorm:"column:name;type:varchar(64);not null" json:"name"`
	Decimals  int       `gorm:"column:decimals;not null" json:"decimals"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Asset) TableName() string {
	return "assets"
}
