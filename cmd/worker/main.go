package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-docs/internal/app"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/output"
	jobmetrics "github.com/odyssey-erp/odyssey-docs/internal/jobs"
	"github.com/odyssey-erp/odyssey-docs/internal/observability"
	"github.com/odyssey-erp/odyssey-docs/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-docs/internal/platform/db"
	"github.com/odyssey-erp/odyssey-docs/jobs"
)

func main() {
	if app.SkipStartup("worker") {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	service := app.NewDocumentService(cfg, logger, app.DocumentDeps{
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	})
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	renderJob := jobs.NewDocumentRenderJob(service, logger, jobMetrics)
	pruneJob := jobs.NewDocumentPruneJob(output.NewDirStore(cfg.DocumentStorageDir), logger, jobMetrics)

	var cron []jobs.CronRegistration
	if cfg.DocumentRetention > 0 {
		pruneTask, err := jobs.NewDocumentPruneTask(cfg.DocumentRetention)
		if err != nil {
			logger.Error("build prune task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.PruneSchedule, Task: pruneTask})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDocumentRender, Handler: renderJob.Handle},
			{Type: jobs.TaskDocumentPrune, Handler: pruneJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
