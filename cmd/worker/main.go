package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-carbon/internal/app"
	"github.com/odyssey-erp/odyssey-carbon/internal/dashboard"
	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	"github.com/odyssey-erp/odyssey-carbon/internal/observability"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/db"
	"github.com/odyssey-erp/odyssey-carbon/internal/reports"
	"github.com/odyssey-erp/odyssey-carbon/internal/shared"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
	"github.com/odyssey-erp/odyssey-carbon/jobs"
)

func main() {
	if app.InTestMode() {
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts, jobs.ReportOptions{Timeout: cfg.ReportTimeout})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadTimeout: cfg.AppReadTimeout}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	reportJob := reports.NewJob(reports.JobConfig{
		Store:      reports.NewRepository(pool),
		Emissions:  emissions.NewRepository(pool),
		Suppliers:  suppliers.NewRepository(pool),
		Queue:      jobClient,
		Cache:      dashboard.NewCache(redisClient, cfg.DashboardCacheTTL),
		Metrics:    metrics.Jobs(),
		Logger:     logger,
		Timeout:    cfg.ReportTimeout,
		StaleAfter: cfg.ReportStaleAfter,
	})
	keys := shared.NewIdempotencyStore(pool)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeReportGenerate, Handler: reportJob.Handle},
			{Type: jobs.TaskTypeReportRecover, Handler: reportJob.HandleRecover},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(keys, cfg.IdempotencyRetention, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/5 * * * *", Task: jobs.NewReportRecoverTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueReports), asynq.MaxRetry(0)}},
			{Spec: "30 3 * * *", Task: asynq.NewTask(jobs.TaskTypeIdempotencyCleanup, nil), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
