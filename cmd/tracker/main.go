package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/finance-tracker-go/internal/action"
	"github.com/boddenberg/finance-tracker-go/internal/config"
	"github.com/boddenberg/finance-tracker-go/internal/handler"
	"github.com/boddenberg/finance-tracker-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-go/internal/infra/store"
	"github.com/boddenberg/finance-tracker-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "read .env: %v\n", err)
	}

	// --- Config ---
	cfg, err := config.Load(os.Getenv("TRACKER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "finance-tracker")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_driver", cfg.DatabaseDriver),
		zap.String("name_uniqueness", cfg.NameUniqueness),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), "finance-tracker", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	db, err := store.Open(store.Config{
		Driver:         cfg.DatabaseDriver,
		DSN:            cfg.DatabaseURL,
		LogQueries:     cfg.DatabaseLog,
		NameUniqueness: cfg.NameUniqueness,
		MaxOpenConns:   cfg.MaxConcurrency,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Cache ---
	backend := newCacheBackend(cfg, resilienceCfg, logger)
	tagCache := cache.New(backend, cfg.CacheTTL, metrics, logger)
	defer tagCache.Close()

	// --- Services ---
	queries := service.NewQueries(db, db, tagCache)
	engine := service.NewEngine(db, tagCache, metrics, logger)
	entrySvc := service.NewEntryService(db, engine, queries, tagCache, metrics, logger)
	todoSvc := service.NewTodoService(db, queries, tagCache, logger)
	accountSvc := service.NewAccountService(db, tagCache, logger)

	if cfg.WebhookSecret == "" {
		logger.Warn("identity webhook: WEBHOOK_SECRET not set, account purge webhook disabled")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Facade:        action.NewFacade(entrySvc, todoSvc, accountSvc, metrics, logger),
		Queries:       queries,
		Overview:      service.NewOverviewService(queries, metrics, logger),
		Export:        service.NewExportService(queries, logger),
		Store:         db,
		Verifier:      handler.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		WebhookSecret: cfg.WebhookSecret,
		Bulkhead:      resilience.NewBulkhead(cfg.MaxConcurrency),
		Metrics:       metrics,
		Logger:        logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// newCacheBackend connects to Redis when configured and degrades to the
// in-process backend when it is unset or unreachable.
func newCacheBackend(cfg *config.Config, rc resilience.Config, logger *zap.Logger) cache.Backend {
	if cfg.RedisURL == "" {
		logger.Info("cache: using in-process backend")
		return cache.NewMemoryBackend(cfg.CacheTTL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rb, err := cache.NewRedisBackend(ctx, cfg.RedisURL, rc, logger)
	if err != nil {
		logger.Warn("cache: redis unavailable, using in-process backend", zap.Error(err))
		return cache.NewMemoryBackend(cfg.CacheTTL)
	}
	logger.Info("cache: using redis backend")
	return rb
}
