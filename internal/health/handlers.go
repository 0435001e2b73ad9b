package health

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Handlers struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// Check GET /health reports connectivity of the two stores the ledger
// depends on. 200 when both respond, 503 otherwise.
func (h *Handlers) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	deps := fiber.Map{}
	healthy := true

	dbStatus := "disconnected"
	if h.DB != nil {
		if sqlDB, err := h.DB.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
			dbStatus = "connected"
		}
	}
	if dbStatus != "connected" {
		healthy = false
	}
	deps["database"] = dbStatus

	redisStatus := "disconnected"
	if h.Rdb != nil && h.Rdb.Ping(ctx).Err() == nil {
		redisStatus = "connected"
	}
	if redisStatus != "connected" {
		healthy = false
	}
	deps["redis"] = redisStatus

	status := "ok"
	code := fiber.StatusOK
	if !healthy {
		status = "issue"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":       status,
		"dependencies": deps,
	})
}
