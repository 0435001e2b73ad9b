package app

import (
	"time"

	"tng-backend/internal/assets"
	"tng-backend/internal/balances"
	"tng-backend/internal/config"
	"tng-backend/internal/database"
	"tng-backend/internal/health"
	"tng-backend/internal/history"
	"tng-backend/internal/holds"
	"tng-backend/internal/idempotency"
	"tng-backend/internal/ledger"
	"tng-backend/internal/middleware"
	"tng-backend/internal/rewards"
	"tng-backend/internal/transfer"
	"tng-backend/internal/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and routes.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{AllowedSuffix: cfg.FrontendURLEndsWith}))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redis.NewClient(opt)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, nil, nil, err
	}
	if err := assets.Seed(db); err != nil {
		return nil, nil, nil, err
	}

	RegisterRoutes(app, cfg, db, rdb)
	return app, db, rdb, nil
}

// RegisterRoutes wires services and routes onto an existing app. Split
// from CreateApp so tests can mount the same routing over sqlite+miniredis.
func RegisterRoutes(app *fiber.App, cfg *config.Config, db *gorm.DB, rdb *redis.Client) {
	store := &ledger.Store{DB: db}
	assetSvc := &assets.Service{DB: db}
	balanceSvc := &balances.Service{DB: db, Store: store, Assets: assetSvc}
	guard := &idempotency.Guard{Rdb: rdb, TTL: time.Duration(cfg.IdempotencyTTLHours) * time.Hour}
	limiter := &transfer.RateLimiter{Rdb: rdb, Limit: int64(cfg.TransferRateLimit), Window: time.Minute}
	engine := &transfer.Engine{DB: db, Store: store, Balances: balanceSvc, Assets: assetSvc, Guard: guard, Limiter: limiter}
	holdSvc := &holds.Service{DB: db, Store: store, Balances: balanceSvc, Assets: assetSvc}
	historySvc := &history.Service{DB: db, Store: store}
	walletSvc := &wallet.Service{DB: db, Store: store, Balances: balanceSvc, Assets: assetSvc, Holds: holdSvc, Guard: guard}
	rewardSvc := &rewards.Service{Engine: engine}

	healthHandlers := &health.Handlers{DB: db, Rdb: rdb}
	app.Get("/health", healthHandlers.Check)

	assetHandlers := &assets.Handlers{Service: assetSvc}
	app.Get("/api/v1/assets", assetHandlers.List)

	balanceHandlers := &balances.Handlers{Service: balanceSvc}
	balanceGroup := app.Group("/api/v1/balances", middleware.RequireUser())
	balanceGroup.Get("/", balanceHandlers.GetAll)
	balanceGroup.Get("/:symbol", balanceHandlers.GetOne)

	transferHandlers := &transfer.Handlers{Engine: engine}
	historyHandlers := &history.Handlers{Service: historySvc}
	transferGroup := app.Group("/api/v1/transfers", middleware.RequireUser())
	transferGroup.Post("/", transferHandlers.Execute)
	transferGroup.Get("/history", historyHandlers.Get)

	walletHandlers := &wallet.Handlers{Service: walletSvc}
	app.Post("/api/v1/wallet/deposit", middleware.RequireAdminKey(cfg.TreasuryAdminKey), walletHandlers.Deposit)
	withdrawGroup := app.Group("/api/v1/wallet/withdrawals", middleware.RequireUser())
	withdrawGroup.Post("/", walletHandlers.RequestWithdrawal)
	withdrawGroup.Post("/:hold_id/confirm", walletHandlers.ConfirmWithdrawal)
	withdrawGroup.Post("/:hold_id/cancel", walletHandlers.CancelWithdrawal)

	rewardHandlers := &rewards.Handlers{Service: rewardSvc}
	app.Post("/api/v1/rewards/issue", middleware.RequireAdminKey(cfg.TreasuryAdminKey), rewardHandlers.Issue)
}
