package assets

import (
	"context"

	"tng-backend/internal/domain"
	"tng-backend/internal/ledger"

	"gorm.io/gorm"
)

// Service is the asset registry: the enumerated set of valid symbols and
// their decimal precision. Reference data, written once at setup.
type Service struct {
	DB *gorm.DB
}

// Get returns the asset or ASSET_NOT_FOUND for unknown symbols.
func (s *Service) Get(ctx context.Context, symbol string) (*domain.Asset, error) {
	if symbol == "" {
		return nil, ledger.E(ledger.CodeInvalidAsset, "asset symbol is required")
	}
	var asset domain.Asset
	err := s.DB.WithContext(ctx).Where("symbol = ?", symbol).First(&asset).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ledger.E(ledger.CodeAssetNotFound, "unknown asset "+symbol)
	}
	if err != nil {
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "loading asset", err)
	}
	return &asset, nil
}

// List returns all registered assets.
func (s *Service) List(ctx context.Context) ([]domain.Asset, error) {
	var out []domain.Asset
	if err := s.DB.WithContext(ctx).Order("symbol").Find(&out).Error; err != nil {
		return nil, ledger.Wrap(ledger.CodeDatabaseError, "listing assets", err)
	}
	return out, nil
}

// Seed inserts the supported assets if missing. Idempotent; run at startup
// after migration.
func Seed(db *gorm.DB) error {
	defaults := []domain.Asset{
		{Symbol: "SOL", Name: "Solana", Decimals: 9},
		{Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{Symbol: "TNG", Name: "TNG Token", Decimals: 9},
	}
	for _, a := range defaults {
		var existing domain.Asset
		err := db.Where("symbol = ?", a.Symbol).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			if err := db.Create(&a).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
