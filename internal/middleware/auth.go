package middleware

import (
	"tng-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	userIDHeader = "X-User-Id"
	userIDLocal  = "user_id"
	adminHeader  = "X-Admin-Key"
)

// RequireUser trusts the authenticated identity the upstream gateway
// (Telegram auth) injects. The ledger core never re-authenticates; it
// only insists the identity is present and well-formed.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(userIDHeader)
		if raw == "" {
			return response.Unauthorized(c, "Not authenticated")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return response.Unauthorized(c, "Invalid user identity")
		}
		c.Locals(userIDLocal, id)
		return c.Next()
	}
}

// UserID returns the authenticated user set by RequireUser.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(userIDLocal).(uuid.UUID)
	return id, ok
}

// RequireAdminKey guards treasury routes (deposit crediting, reward
// issuance) with a shared key held by the internal services that call them.
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" || c.Get(adminHeader) != key {
			return response.Error(c, "Forbidden", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
