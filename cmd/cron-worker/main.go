package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codebrew/pos-backend/internal/cron"
	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/pkg/config"
	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/metrics"
	"github.com/codebrew/pos-backend/pkg/migrate"
	"github.com/codebrew/pos-backend/pkg/outbox"
	"github.com/codebrew/pos-backend/pkg/redis"
	"github.com/codebrew/pos-backend/pkg/tracing"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	tracer, err := tracing.Initialize(ctx, cfg.Tracing, cfg.App.Env, "pos-cron-worker")
	if err != nil {
		logg.Error(ctx, "failed to initialize tracing", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()
	cfg.DB.Tracing = cfg.DB.Tracing || tracer.Enabled()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:   inventory.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outbox.NewService(outboxRepo, logg),
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create inventory service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewInventoryReconcileJob(cron.InventoryReconcileJobParams{
		Logger:     logg,
		Reconciler: inventorySvc,
		BatchSize:  cfg.Cron.ReconcileBatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create reconcile job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 2*cfg.Cron.Interval)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob, retentionJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker shutting down gracefully")
}
