package rewards

import (
	"tng-backend/internal/pkg/response"
	"tng-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// Issue POST /api/v1/rewards/issue is an admin-key route; it pays a reward from
// the system account.
func (h *Handlers) Issue(c *fiber.Ctx) error {
	var body struct {
		UserID         string `json:"user_id"`
		AssetSymbol    string `json:"asset_symbol"`
		Amount         string `json:"amount"`
		IdempotencyKey string `json:"idempotency_key"`
		Description    string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.IdempotencyKey == "" {
		return response.Error(c, "idempotency_key is required", fiber.StatusBadRequest, nil)
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for user_id", fiber.StatusBadRequest, nil)
	}
	amount, err := validation.ParseAmount(body.Amount)
	if err != nil {
		return response.LedgerError(c, err)
	}

	res, err := h.Service.Issue(c.Context(), userID, body.AssetSymbol, amount, body.IdempotencyKey, body.Description)
	if err != nil {
		return response.LedgerError(c, err)
	}
	if res.Replayed {
		return response.Success(c, "Reward already issued", res, nil)
	}
	return response.SuccessCreated(c, "Reward issued", res, nil)
}
