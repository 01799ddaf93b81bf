package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codebrew/pos-backend/api/routes"
	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/internal/orders"
	"github.com/codebrew/pos-backend/internal/transfers"
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
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	tracer, err := tracing.Initialize(context.Background(), cfg.Tracing, cfg.App.Env, "pos-api")
	if err != nil {
		logg.Error(context.Background(), "failed to initialize tracing", err)
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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger := inventory.NewLedger()
	audit := inventory.NewAuditWriter()

	inventoryService, err := inventory.NewService(inventory.ServiceParams{
		Repo:    inventory.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Ledger:  ledger,
		Audit:   audit,
		Outbox:  emitter,
		Metrics: engineMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	transferService, err := transfers.NewService(transfers.ServiceParams{
		Tx:      dbClient,
		Ledger:  ledger,
		Audit:   audit,
		Outbox:  emitter,
		Metrics: engineMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transfer service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Ledger:  ledger,
		Audit:   audit,
		Outbox:  emitter,
		Config:  cfg.Orders,
		Metrics: engineMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	router := routes.NewRouter(routes.Deps{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Gatherer:    prometheus.DefaultGatherer,
		Orders:      orderService,
		Inventory:   inventoryService,
		Transfers:   transferService,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(router, "pos-api"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
