package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threadkart/marketplace-backend/internal/orders"
	"github.com/threadkart/marketplace-backend/internal/returns"
	"github.com/threadkart/marketplace-backend/internal/shipping"
	"github.com/threadkart/marketplace-backend/internal/wallet"
	courierwebhook "github.com/threadkart/marketplace-backend/internal/webhooks/courier"
	"github.com/threadkart/marketplace-backend/pkg/config"
	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db"
	"github.com/threadkart/marketplace-backend/pkg/instance"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/metrics"
	"github.com/threadkart/marketplace-backend/pkg/migrate"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "tracking-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "tracking-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	courierClient, err := courier.NewClient(context.Background(), cfg.Courier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap courier client", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	walletSvc, err := wallet.NewService(wallet.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	// The worker only releases earnings and applies return charges, so the
	// payment gateway and forward booking deps stay unset.
	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:          orders.NewRepository(dbClient.DB()),
		Tx:            dbClient,
		Outbox:        outboxSvc,
		Wallet:        walletSvc,
		CommissionBPS: cfg.Pricing.CommissionRateBPS,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	returnsSvc, err := returns.NewService(returns.Deps{
		Repo:         returns.NewRepository(dbClient.DB()),
		Tx:           dbClient,
		Outbox:       outboxSvc,
		Wallet:       walletSvc,
		Carrier:      courierClient,
		ReturnWindow: cfg.Returns.Window(),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create returns service", err)
		os.Exit(1)
	}

	webhookSvc, err := courierwebhook.NewService(courierwebhook.Deps{
		Repo:    courierwebhook.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxSvc,
		Orders:  ordersSvc,
		Returns: returnsSvc,
		Guard:   redisClient,
		Metrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ingestion service", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		Shipments:    shipping.NewRepository(dbClient.DB()),
		Tracker:      courierClient,
		Ingest:       webhookSvc,
		Metrics:      metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		BatchSize:    cfg.Tracking.BatchSize,
		PollInterval: cfg.Tracking.PollInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

	go serveMetrics(ctx, logg, cfg.Tracking.MetricsPort)

	logg.Info(ctx, "starting tracking worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "tracking worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "tracking worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger, port string) {
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
