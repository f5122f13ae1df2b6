package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/config"
	database "github.com/duynhne/learning-platform/internal/core"
	"github.com/duynhne/learning-platform/internal/core/domain"
	"github.com/duynhne/learning-platform/internal/core/repository/memory"
	"github.com/duynhne/learning-platform/internal/core/repository/psql"
	"github.com/duynhne/learning-platform/internal/lesson"
	v1 "github.com/duynhne/learning-platform/internal/web/v1"
	"github.com/duynhne/learning-platform/middleware"
)

func main() {
	// Load configuration from environment variables (with .env file support for local dev)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	// Initialize structured logger
	logger, err := newLogger(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit

	info := middleware.DetectServiceInfo(cfg.Service.Name, cfg.Service.Version, cfg.Service.Env)
	logger.Info("Service starting",
		zap.String("service", info.Name),
		zap.String("namespace", info.Namespace),
		zap.String("version", cfg.Service.Version),
		zap.String("env", cfg.Service.Env),
		zap.String("port", cfg.Service.Port),
	)
	if cfg.Admin.Key == "" {
		logger.Warn("ADMIN_KEY is not set; admin endpoints will answer SERVER_MISCONFIG")
	}

	// Initialize OpenTelemetry tracing with centralized config
	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		provider, err := middleware.InitTracing(context.Background(), cfg.Tracing, info)
		if err != nil {
			logger.Warn("Failed to initialize tracing", zap.Error(err))
		} else {
			tp = provider
			logger.Info("Tracing initialized",
				zap.String("endpoint", cfg.Tracing.Endpoint),
				zap.Float64("sample_rate", cfg.Tracing.SampleRate),
			)
		}
	} else {
		logger.Info("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		stopProfiling, err := middleware.InitProfiling(cfg.Profiling, info, logger)
		if err != nil {
			logger.Warn("Failed to initialize profiling", zap.Error(err))
		} else {
			logger.Info("Profiling initialized", zap.String("endpoint", cfg.Profiling.Endpoint))
			defer stopProfiling()
		}
	} else {
		logger.Info("Profiling disabled (PROFILING_ENABLED=false)")
	}

	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("Failed to register validators", zap.Error(err))
	}

	store, pool, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	if pool != nil {
		defer pool.Close()
	}

	var isShuttingDown atomic.Bool

	r := v1.NewRouter(v1.RouterOptions{
		Logger:         logger,
		ServiceName:    info.Name,
		AdminKey:       cfg.Admin.Key,
		ExposeInternal: cfg.IsDevelopment(),
		Store:          store,
		Generator:      newGenerator(cfg, logger),
		LessonTimeout:  cfg.GetLessonTimeoutDuration(),
		Draining:       &isShuttingDown,
		MetricsPath:    metricsPath(cfg),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting learning platform API", zap.String("port", cfg.Service.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown - modern signal handling with context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Fail readiness first and wait for propagation.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		logger.Info("Readiness drain delay started", zap.Duration("delay", drainDelay))
		time.Sleep(drainDelay)
		logger.Info("Readiness drain delay completed", zap.Duration("delay", drainDelay))
	}

	// Shutdown context with configurable timeout
	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...", zap.Duration("timeout", shutdownTimeout))

	// Cleanup order: HTTP Server → Database → Tracer

	// 1. Stop accepting new connections, wait for in-flight requests
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server shutdown complete")
	}

	// 2. Close database connections
	if pool != nil {
		pool.Close()
		logger.Info("Database pool closed")
	}

	// 3. Flush pending spans
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Tracer shutdown error", zap.Error(err))
		} else {
			logger.Info("Tracer shutdown complete")
		}
	}

	logger.Info("Graceful shutdown complete")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.Format == "console" {
		return middleware.NewDevelopmentLogger(cfg.Logging.Level)
	}
	return middleware.NewLogger(cfg.Logging.Level)
}

// openStore connects, migrates and seeds PostgreSQL when DB_HOST is set,
// and otherwise falls back to the seeded in-memory store. The returned pool
// is nil for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.Store, *pgxpool.Pool, error) {
	if !cfg.Database.Enabled() {
		logger.Info("DB_HOST not set; using in-memory store")
		store, err := memory.NewSeeded()
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := database.Seed(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Database connection pool established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)
	return psql.NewStore(pool), pool, nil
}

func newGenerator(cfg *config.Config, logger *zap.Logger) lesson.Generator {
	if cfg.Lesson.Provider != "openai" {
		logger.Info("Using mock lesson generator")
		return lesson.NewMockGenerator()
	}

	logger.Info("Using OpenAI lesson generator",
		zap.String("model", cfg.Lesson.Model),
		zap.String("base_url", cfg.Lesson.BaseURL),
	)
	return lesson.NewResilientGenerator(
		lesson.NewOpenAIGenerator(lesson.OpenAIConfig{
			APIKey:  cfg.Lesson.APIKey,
			BaseURL: cfg.Lesson.BaseURL,
			Model:   cfg.Lesson.Model,
			Timeout: cfg.GetLessonTimeoutDuration(),
		}),
		lesson.ResilientConfig{Logger: logger},
	)
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}
