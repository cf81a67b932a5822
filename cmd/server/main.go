// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/auth"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/cache"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/config"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/coordinator"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/database"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/handlers"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/models"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/notify"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/realtime"
	"github.com/agodwin-ops/olympics-pwa-laurentian/internal/reward"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// store is what the server needs from either backend.
type store interface {
	database.Store
	CreateUser(ctx context.Context, u *models.User) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	tokens, err := newTokenService(cfg)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := bootstrapAdmin(ctx, cfg, st, logger); err != nil {
		return err
	}

	registry := realtime.NewRegistry(logger, realtime.WithBufferSize(cfg.ConnectionBufferSize))
	dispatcher := realtime.NewDispatcher(registry, logger)
	outbox := realtime.NewOutbox(dispatcher, cfg.OutboxSize, logger)
	emitter := notify.NewEmitter(outbox, st, cfg.LeaderboardSize, logger)
	coord := coordinator.New(st, reward.NewEngine(nil), logger, emitter)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publisher := cache.NewActivityPublisher(rdb, cfg.ActivityQueueName, cfg.ActivityBuffer, logger)
		coord.AddHook(publisher)
		g.Go(func() error { return publisher.Run(gctx) })
		logger.WithField("queue", cfg.ActivityQueueName).Info("activity publishing enabled")
	}

	server := handlers.NewServer(handlers.Deps{
		Store:       st,
		Tokens:      tokens,
		Registry:    registry,
		Dispatcher:  dispatcher,
		Outbox:      outbox,
		Emitter:     emitter,
		Coordinator: coord,
		Logger:      logger,
		Pump: realtime.PumpConfig{
			PingInterval: cfg.PingInterval,
			WriteTimeout: cfg.WriteTimeout,
		},
		OriginPatterns: cfg.AllowedOrigins,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return outbox.Run(gctx) })
	g.Go(func() error {
		return registry.RunIdleSweeper(gctx, cfg.IdleTimeout/2, cfg.IdleTimeout)
	})
	g.Go(func() error {
		logger.Infof("Running on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Hijacked sockets are not tracked by Shutdown.
		n := registry.CloseAll("server shutting down")
		logger.WithField("connections", n).Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newTokenService(cfg *config.Config) (*auth.TokenService, error) {
	ttl, err := auth.ParseTokenTTL(cfg.TokenExpireTime)
	if err != nil {
		return nil, err
	}
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		return auth.NewTokenServiceFromPath(cfg.JWTPrivateKey, cfg.JWTPublicKey, ttl)
	}
	return auth.NewTokenService(ttl)
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store, func(), error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store, progress is lost on restart")
		return database.NewMemoryStore(), func() {}, nil
	}

	pool, err := database.Connect(ctx, database.ConnConfig{
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Host:     cfg.PGHost,
		Port:     cfg.PGPort,
		Database: cfg.PGDatabase,
		MaxConns: cfg.PGMaxConns,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	pg := database.NewPostgresStore(pool)
	if err := pg.SeedStations(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}

// bootstrapAdmin creates the first instructor account when configured. An
// existing account with the same email is left alone.
func bootstrapAdmin(ctx context.Context, cfg *config.Config, st store, logger *logrus.Logger) error {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	if _, err := st.GetUserByEmail(ctx, cfg.BootstrapAdminEmail); err == nil {
		return nil
	}
	admin := &models.User{
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		Username: "instructor",
		IsAdmin:  true,
	}
	if err := st.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	logger.WithField("email", admin.Email).Info("bootstrap admin created")
	return nil
}
