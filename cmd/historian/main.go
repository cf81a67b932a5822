// cmd/historian/main.go drains the activity queue in Redis into the
// activity_log table.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/cache"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/config"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/database"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisAddr := cfg.RedisAddr
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb, err := cache.ConnectRedis(ctx, redisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, database.ConnConfig{
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Host:     cfg.PGHost,
		Port:     cfg.PGPort,
		Database: cfg.PGDatabase,
		MaxConns: cfg.PGMaxConns,
	}, logger)
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	svc := historian.NewService(rdb, database.NewPostgresStore(pool), historian.Config{
		Queue:      cfg.ActivityQueueName,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlushDelay(),
	}, logger)

	if err := svc.Run(ctx); err != nil {
		logger.Errorf("historian exited: %v", err)
	}
	logger.WithField("flushed", svc.Flushed()).Info("historian stopped")
}
