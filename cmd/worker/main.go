package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audt-staking/backend/internal/audit"
	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/db"
	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	genesis, err := cfg.Genesis()
	if err != nil {
		log.Fatal("invalid genesis configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open journal", zap.Error(err))
	}
	defer store.Close()
	if !store.Shared {
		log.Fatal("worker needs a journal shared with the API, the API audits other backends itself",
			zap.String("journal", cfg.JournalBackend))
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	var publisher events.Publisher = events.NopPublisher{}
	if rdb != nil {
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, int64(cfg.EventHistory), log)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	auditor := audit.NewAuditor(genesis, store.Journal, publisher, m, nil, log.Named("audit"))

	// Health and metrics
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	go func() {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := app.Listen(addr); err != nil {
			log.Error("worker http server error", zap.Error(err))
		}
	}()
	defer app.Shutdown()

	log.Info("worker started", zap.Duration("audit_interval", cfg.AuditInterval))

	interval := cfg.AuditInterval
	if interval <= 0 {
		interval = time.Minute
	}
	auditTicker := time.NewTicker(interval)
	defer auditTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runAudit(ctx, auditor, log)
	for {
		select {
		case <-auditTicker.C:
			runAudit(ctx, auditor, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runAudit(ctx context.Context, auditor *audit.Auditor, log *zap.Logger) {
	started := time.Now()
	rep, err := auditor.RunOnce(ctx)
	if err != nil {
		log.Error("journal audit failed", zap.Error(err))
		return
	}
	log.Info("journal audited",
		zap.Uint64("seq", rep.Seq),
		zap.Int("violations", len(rep.Violations)),
		zap.Bool("window_closed", rep.WindowClosed),
		zap.Duration("took", time.Since(started)),
	)
}
