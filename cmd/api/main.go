package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/audt-staking/backend/internal/audit"
	"github.com/audt-staking/backend/internal/auth"
	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/db"
	"github.com/audt-staking/backend/internal/engine"
	"github.com/audt-staking/backend/internal/events"
	apphttp "github.com/audt-staking/backend/internal/http"
	"github.com/audt-staking/backend/internal/http/handlers"
	"github.com/audt-staking/backend/internal/metrics"
	"github.com/audt-staking/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	genesis, err := cfg.Genesis()
	if err != nil {
		log.Fatal("invalid genesis configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Journal
	store, err := db.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open journal", zap.Error(err))
	}
	defer store.Close()

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Events
	var (
		publisher  events.Publisher
		subscriber events.Subscriber
		history    events.History
		nonces     auth.NonceStore
	)
	if rdb != nil {
		sub := events.NewRedisSubscriber(rdb, log)
		publisher, subscriber, history = events.NewRedisPublisher(rdb, int64(cfg.EventHistory), log), sub, sub
		nonces = auth.NewRedisNonceStore(rdb)
	} else {
		local := events.NewLocal(cfg.EventHistory)
		publisher, subscriber, history = local, local, local
		nonces = auth.NewMemoryNonceStore()
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Engine
	eng, err := engine.New(genesis, engine.Options{
		Journal:   store.Journal,
		Publisher: publisher,
		Metrics:   m,
		Log:       log.Named("engine"),
	})
	if err != nil {
		log.Fatal("failed to create engine", zap.Error(err))
	}
	if err := eng.Open(ctx); err != nil {
		log.Fatal("failed to open engine", zap.Error(err))
	}

	// A journal nobody else can read is audited in-process.
	if !store.Shared && cfg.AuditInterval > 0 {
		auditor := audit.NewAuditor(genesis, store.Journal, publisher, m, nil, log.Named("audit"))
		go auditor.Run(ctx, cfg.AuditInterval)
	}

	// Services
	stakingService := services.NewStakingService(eng, store.Events, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, history, log)
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, m, reg, apphttp.Handlers{
		Auth:    handlers.NewAuthHandler(nonces, cfg, log),
		Staking: handlers.NewStakingHandler(stakingService, log),
		Ledger:  handlers.NewLedgerHandler(stakingService, log),
		Token:   handlers.NewTokenHandler(stakingService, log),
		Admin:   handlers.NewAdminHandler(stakingService, log),
		Meta:    handlers.NewMetaHandler(stakingService),
		WS:      wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server",
		zap.String("addr", addr),
		zap.String("journal", cfg.JournalBackend),
		zap.Uint64("seq", eng.Seq()),
	)
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
