package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"textile-store/internal/currency"
	"textile-store/internal/database"
	"textile-store/internal/mail"
	"textile-store/internal/realtime"
	"textile-store/internal/server"
	"textile-store/internal/storage"
	"textile-store/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.log.Info("Starting storefront API",
		zap.String("env", a.cfg.Server.Env),
		zap.String("port", a.cfg.Server.Port),
	)

	shutdownTracing, err := telemetry.Init(parent, a.cfg.Telemetry, a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	dbService, err := database.New(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.log.Info("Database health check", zap.Any("health", dbService.Health(parent)))

	if err := database.RunMigrations(parent, dbService.DB(), migrationsDir, a.log); err != nil {
		_ = dbService.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	rdb := a.connectRedis(parent)
	broker := realtime.NewMemoryBroker()
	cache := currency.NewMemoryCache()
	if rdb != nil {
		broker = realtime.NewRedisBroker(rdb, a.log)
		cache = currency.NewRedisCache(rdb)
	}

	objects, err := storage.New(a.cfg.Storage)
	if err != nil {
		_ = dbService.Close()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	httpClient := &http.Client{
		Timeout:   5 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	srv := server.NewServer(a.cfg, a.log, server.Dependencies{
		DB:       dbService,
		Redis:    rdb,
		Broker:   broker,
		Storage:  objects,
		Mailer:   mail.New(a.cfg.Mail, a.log),
		Currency: currency.NewService(a.cfg.Currency, cache, httpClient, a.log),
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("Server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = srv.Close()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("Shutting down gracefully, press Ctrl+C again to force")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := srv.Close(); err != nil {
		a.log.Error("Error closing server resources", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		a.log.Error("Failed to flush traces", zap.Error(err))
	}

	a.log.Info("Graceful shutdown complete")
	return nil
}

// connectRedis returns a client when Redis answers, or nil so the server
// falls back to in-process realtime and caching.
func (a *app) connectRedis(ctx context.Context) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr(),
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.log.Warn("Redis unavailable, using in-memory broker and cache",
			zap.String("addr", a.cfg.Redis.Addr()),
			zap.Error(err),
		)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
