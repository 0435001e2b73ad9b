package assets

import (
	"tng-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *Service
}

// List GET /api/v1/assets returns the supported assets with their decimal
// precision, so clients can render minor-unit amounts.
func (h *Handlers) List(c *fiber.Ctx) error {
	assets, err := h.Service.List(c.Context())
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Assets fetched", assets, nil)
}
