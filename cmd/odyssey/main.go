package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-docs/internal/app"
	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	documentshttp "github.com/odyssey-erp/odyssey-docs/internal/documents/http"
	"github.com/odyssey-erp/odyssey-docs/internal/observability"
	"github.com/odyssey-erp/odyssey-docs/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-docs/internal/platform/db"
	"github.com/odyssey-erp/odyssey-docs/jobs"
)

func main() {
	if app.SkipStartup("server") {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	observability.SetPropagator()

	var pool *pgxpool.Pool
	if pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns}); err != nil {
		logger.Warn("postgres unavailable, stored records disabled", slog.Any("error", err))
	} else {
		defer pool.Close()
		if err := documents.NewRepository(pool).EnsureSchema(ctx); err != nil {
			logger.Error("apply document schema", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var redisClient *redis.Client
	if redisClient, err = cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, previews kept in memory and jobs disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	service := app.NewDocumentService(cfg, logger, app.DocumentDeps{
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	})

	var (
		jobClient  *jobs.Client
		jobHandler *jobs.Handler
	)
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		if jobClient, err = jobs.NewClient(redisOpts); err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		DocumentHandler: documentshttp.NewHandler(logger, service, jobClient),
		JobHandler:      jobHandler,
		Metrics:         metrics,
		FilesDir:        cfg.DocumentStorageDir,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
