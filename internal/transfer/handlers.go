package transfer

import (
	"tng-backend/internal/middleware"
	"tng-backend/internal/pkg/response"
	"tng-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Engine *Engine
}

// Execute POST /api/v1/transfers runs an atomic transfer to another user.
func (h *Handlers) Execute(c *fiber.Ctx) error {
	fromUserID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var body struct {
		ToUserID       string                 `json:"to_user_id"`
		AssetSymbol    string                 `json:"asset_symbol"`
		Amount         string                 `json:"amount"`
		IdempotencyKey string                 `json:"idempotency_key"`
		Description    string                 `json:"description"`
		Metadata       map[string]interface{} `json:"metadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.IdempotencyKey == "" {
		return response.Error(c, "idempotency_key is required", fiber.StatusBadRequest, nil)
	}
	toUserID, err := uuid.Parse(body.ToUserID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for to_user_id", fiber.StatusBadRequest, nil)
	}
	amount, err := validation.ParseAmount(body.Amount)
	if err != nil {
		return response.LedgerError(c, err)
	}

	res, err := h.Engine.ExecuteTransfer(c.Context(), fromUserID, toUserID, body.AssetSymbol, amount, body.IdempotencyKey, body.Description, body.Metadata)
	if err != nil {
		return response.LedgerError(c, err)
	}
	if res.Replayed {
		return response.Success(c, "Transfer already processed", res, nil)
	}
	return response.SuccessCreated(c, "Transfer completed", res, nil)
}
