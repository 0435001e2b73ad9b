package balances

import (
	"time"

	"tng-backend/internal/domain"
	"tng-backend/internal/middleware"
	"tng-backend/internal/pkg/response"
	"tng-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// BalanceView serializes amounts as strings at the transport boundary.
type BalanceView struct {
	AssetSymbol     string     `json:"asset_symbol"`
	Amount          string     `json:"amount"`
	LockedAmount    string     `json:"locked_amount"`
	AvailableAmount string     `json:"available_amount"`
	LastUpdated     time.Time  `json:"last_updated"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"`
}

func toView(b *domain.Balance) BalanceView {
	return BalanceView{
		AssetSymbol:     b.AssetSymbol,
		Amount:          validation.FormatAmount(b.AmountCached),
		LockedAmount:    validation.FormatAmount(b.LockedAmount),
		AvailableAmount: validation.FormatAmount(b.Available()),
		LastUpdated:     b.LastUpdated,
		SyncedAt:        b.SyncedAt,
	}
}

// GetAll GET /api/v1/balances returns every balance the caller has touched.
func (h *Handlers) GetAll(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	list, err := h.Service.GetAll(c.Context(), userID)
	if err != nil {
		return response.LedgerError(c, err)
	}
	views := make([]BalanceView, len(list))
	for i := range list {
		views[i] = toView(&list[i])
	}
	return response.Success(c, "Balances fetched", views, nil)
}

// GetOne GET /api/v1/balances/:symbol returns one balance snapshot;
// ?recalculate=true rebuilds the aggregate from the entry store first.
func (h *Handlers) GetOne(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	symbol := c.Params("symbol")

	var b *domain.Balance
	var err error
	if c.QueryBool("recalculate") {
		b, err = h.Service.Recalculate(c.Context(), userID, symbol)
	} else {
		b, err = h.Service.Get(c.Context(), userID, symbol)
	}
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Balance fetched", toView(b), nil)
}
