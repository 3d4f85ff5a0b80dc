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

	"github.com/odyssey-erp/odyssey-carbon/internal/app"
	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/dashboard"
	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	"github.com/odyssey-erp/odyssey-carbon/internal/observability"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/db"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-carbon/internal/reports"
	"github.com/odyssey-erp/odyssey-carbon/internal/shared"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
	"github.com/odyssey-erp/odyssey-carbon/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping api startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The dashboard falls back to uncached reads.
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts, jobs.ReportOptions{
		Delay:   cfg.ReportGenerationDelay,
		Timeout: cfg.ReportTimeout,
	})
	if err != nil {
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

	metrics := observability.NewMetrics()
	validator := httpx.NewValidator()
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	authMW := auth.Middleware{Verifier: auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer), Logger: logger}

	emissionService := emissions.NewService(emissions.NewRepository(dbpool), dashboardCache, validator, logger)
	supplierService := suppliers.NewService(suppliers.ServiceConfig{
		Store:     suppliers.NewRepository(dbpool),
		Mailer:    jobClient,
		Cache:     dashboardCache,
		Validator: validator,
		Logger:    logger,
	})
	reportService := reports.NewService(reports.ServiceConfig{
		Store:     reports.NewRepository(dbpool),
		Queue:     jobClient,
		Keys:      shared.NewIdempotencyStore(dbpool),
		Cache:     dashboardCache,
		Validator: validator,
		Logger:    logger,
	})
	dashboardService := dashboard.NewService(emissionService, supplierService, reportService, dashboardCache, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Auth:             authMW,
		EmissionsHandler: emissions.NewHandler(logger, emissionService, authMW),
		SuppliersHandler: suppliers.NewHandler(logger, supplierService),
		ReportsHandler:   reports.NewHandler(logger, reportService),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Readiness: map[string]app.ReadinessCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
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
