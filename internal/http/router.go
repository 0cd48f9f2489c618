package http

import (
	"time"

	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/http/handlers"
	"github.com/audt-staking/backend/internal/metrics"
	"github.com/audt-staking/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Staking *handlers.StakingHandler
	Ledger  *handlers.LedgerHandler
	Token   *handlers.TokenHandler
	Admin   *handlers.AdminHandler
	Meta    *handlers.MetaHandler
	WS      *handlers.WSHub // optional
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log, m))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api/v1")

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Auth (public)
	api.Post("/auth/nonce", h.Auth.Nonce)
	api.Post("/auth/login", h.Auth.Login)

	// Meta
	api.Get("/meta/contracts", h.Meta.GetContracts)
	api.Get("/meta/roles", h.Meta.GetRoles)

	// Public reads
	api.Get("/pool", h.Staking.GetPool)
	api.Get("/deposits", h.Staking.ListDeposits)
	api.Get("/deposits/:address", h.Staking.GetDeposit)
	api.Get("/ledger", h.Ledger.ListEntries)
	api.Get("/ledger/:address", h.Ledger.GetClaimable)
	api.Get("/token/supply", h.Token.GetSupply)
	api.Get("/token/accounts/:address", h.Token.GetAccount)
	api.Get("/events/:address", h.Staking.Events)
	api.Get("/roles/:target/:role", h.Admin.Members)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Get("/me", h.Token.Me)
	protected.Get("/me/deposit", h.Staking.MyDeposit)

	// Staking
	protected.Post("/stake", h.Staking.Stake)
	protected.Post("/redeem", h.Staking.Redeem)

	// Deposit ledger
	protected.Post("/ledger/claim", h.Ledger.Claim)
	protected.Post("/ledger/receive", h.Ledger.ReceiveTokens)

	// Token
	protected.Post("/token/transfer", h.Token.Transfer)
	protected.Post("/token/approve", h.Token.Approve)

	// Role-guarded administration
	admin := protected.Group("/admin")
	admin.Post("/end-date", h.Admin.UpdateEndDate)
	admin.Post("/min-stake", h.Admin.UpdateMinStakeAmount)
	admin.Post("/reward", h.Admin.SetReward)
	admin.Post("/blacklist", h.Admin.BlacklistAddress)
	admin.Post("/deposit-contract", h.Admin.SetDepositContract)
	admin.Post("/return-tokens", h.Admin.ReturnUnauthorizedTokens)
	admin.Post("/ledger/recover", h.Admin.RecoverLedgerTokens)
	admin.Post("/mint", h.Admin.Mint)
	admin.Post("/roles/grant", h.Admin.GrantRole)
	admin.Post("/roles/revoke", h.Admin.RevokeRole)

	// WebSocket
	if h.WS != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(h.WS.HandleWS))
	}
}
