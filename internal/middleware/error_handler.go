package middleware

import (
	"tng-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the global error handler for errors that escape a
// handler (unmatched routes, body-size limits). Handlers map ledger
// failures themselves via response.LedgerError; anything landing here is
// transport-level.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, message, code, nil)
}
