package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/audt-staking/backend/internal/config"
	"github.com/audt-staking/backend/internal/db"
	"github.com/audt-staking/backend/internal/events"
	"github.com/audt-staking/backend/internal/notify"
	"go.uber.org/zap"
)

// Notify bridge: subscribes to committed staking events in redis and forwards
// the selected ones to NOTIFY_WEBHOOK_URL.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	if rdb == nil {
		log.Fatal("notify bridge needs REDIS_URL")
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	forwarder := notify.NewForwarder(cfg.NotifyWebhookURL, cfg.NotifyEvents, log)

	if err := subscriber.Subscribe(ctx, events.StreamStaking, forwarder.Handle); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}
	log.Info("notify-bridge started", zap.String("stream", events.StreamStaking))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
