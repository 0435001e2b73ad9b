package database

import (
	"tng-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN. PreferSimpleProtocol disables prepared
// statement caching to avoid 42P05 ("prepared statement already exists")
// behind connection poolers (PgBouncer, Supabase, Render).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// AutoMigrate runs migrations for the ledger models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Asset{},
		&domain.LedgerEntry{},
		&domain.Balance{},
		&domain.Hold{},
		&domain.IdempotencyRecord{},
	)
}
