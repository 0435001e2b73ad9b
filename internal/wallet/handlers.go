package wallet

import (
	"tng-backend/internal/middleware"
	"tng-backend/internal/pkg/response"
	"tng-backend/internal/pkg/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *Service
}

// Deposit POST /api/v1/wallet/deposit is the admin-key route the chain watcher
// calls once an on-chain deposit is confirmed.
func (h *Handlers) Deposit(c *fiber.Ctx) error {
	var body struct {
		UserID      string `json:"user_id"`
		AssetSymbol string `json:"asset_symbol"`
		Amount      string `json:"amount"`
		Signature   string `json:"signature"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return response.Error(c, "Invalid UUID format for user_id", fiber.StatusBadRequest, nil)
	}
	amount, err := validation.ParseAmount(body.Amount)
	if err != nil {
		return response.LedgerError(c, err)
	}
	if body.Signature == "" {
		return response.Error(c, "signature is required", fiber.StatusBadRequest, nil)
	}

	res, err := h.Service.Deposit(c.Context(), userID, body.AssetSymbol, amount, body.Signature, body.Description)
	if err != nil {
		return response.LedgerError(c, err)
	}
	if res.Replayed {
		return response.Success(c, "Deposit already credited", res, nil)
	}
	return response.SuccessCreated(c, "Deposit credited", res, nil)
}

// RequestWithdrawal POST /api/v1/wallet/withdrawals reserves the amount
// behind a hold while the on-chain withdrawal is pending.
func (h *Handlers) RequestWithdrawal(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var body struct {
		AssetSymbol string `json:"asset_symbol"`
		Amount      string `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	amount, err := validation.ParseAmount(body.Amount)
	if err != nil {
		return response.LedgerError(c, err)
	}

	hold, err := h.Service.RequestWithdrawal(c.Context(), userID, body.AssetSymbol, amount)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.SuccessCreated(c, "Withdrawal hold opened", hold, nil)
}

// ConfirmWithdrawal POST /api/v1/wallet/withdrawals/:hold_id/confirm
// settles the hold into a posted debit after chain confirmation.
func (h *Handlers) ConfirmWithdrawal(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	holdID, err := uuid.Parse(c.Params("hold_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", fiber.StatusBadRequest, nil)
	}
	var body struct {
		Signature string `json:"signature"`
	}
	_ = c.BodyParser(&body)

	hold, entry, err := h.Service.ConfirmWithdrawal(c.Context(), userID, holdID, body.Signature)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Withdrawal settled", fiber.Map{
		"hold":  hold,
		"entry": entry,
	}, nil)
}

// CancelWithdrawal POST /api/v1/wallet/withdrawals/:hold_id/cancel
// unlocks the hold with no balance effect.
func (h *Handlers) CancelWithdrawal(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	holdID, err := uuid.Parse(c.Params("hold_id"))
	if err != nil {
		return response.Error(c, "Invalid UUID format for hold_id", fiber.StatusBadRequest, nil)
	}

	hold, err := h.Service.CancelWithdrawal(c.Context(), userID, holdID)
	if err != nil {
		return response.LedgerError(c, err)
	}
	return response.Success(c, "Withdrawal cancelled", hold, nil)
}
