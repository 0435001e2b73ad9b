package history

import (
	"tng-backend/internal/middleware"
	"tng-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// Get GET /api/v1/transfers/history returns paginated entries for the caller,
// newest first, optionally filtered by asset.
func (h *Handlers) Get(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", defaultLimit)
	assetSymbol := c.Query("asset_symbol")

	result, err := h.Service.GetUserTransactionHistory(c.Context(), userID, assetSymbol, page, limit)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Transaction history fetched", result.Entries, fiber.Map{
		"page":  result.Page,
		"limit": result.Limit,
		"total": result.Total,
	})
}
