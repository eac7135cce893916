package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/threadkart/marketplace-backend/api/routes"
	"github.com/threadkart/marketplace-backend/internal/orders"
	"github.com/threadkart/marketplace-backend/internal/payments"
	"github.com/threadkart/marketplace-backend/internal/returns"
	"github.com/threadkart/marketplace-backend/internal/shipping"
	"github.com/threadkart/marketplace-backend/internal/wallet"
	courierwebhook "github.com/threadkart/marketplace-backend/internal/webhooks/courier"
	"github.com/threadkart/marketplace-backend/internal/withdrawals"
	"github.com/threadkart/marketplace-backend/pkg/config"
	"github.com/threadkart/marketplace-backend/pkg/courier"
	"github.com/threadkart/marketplace-backend/pkg/db"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/metrics"
	"github.com/threadkart/marketplace-backend/pkg/migrate"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/paygate"
	"github.com/threadkart/marketplace-backend/pkg/redis"
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

	paygateClient, err := paygate.NewClient(context.Background(), cfg.Paygate, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

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

	paymentsSvc, err := payments.NewService(paygateClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	shippingSvc, err := shipping.NewService(shipping.Deps{
		Repo:    shipping.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Carrier: courierClient,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:          orders.NewRepository(dbClient.DB()),
		Tx:            dbClient,
		Outbox:        outboxSvc,
		Wallet:        walletSvc,
		Verifier:      paymentsSvc,
		Refunder:      paymentsSvc,
		Booker:        shippingSvc,
		RTO:           shippingSvc,
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

	withdrawalsSvc, err := withdrawals.NewService(withdrawals.Deps{
		Repo:   withdrawals.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Outbox: outboxSvc,
		Wallet: walletSvc,
		Payout: paygateClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create withdrawals service", err)
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
		logg.Error(context.Background(), "failed to create courier webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Orders:      ordersSvc,
			Payments:    paymentsSvc,
			Withdrawals: withdrawalsSvc,
			Returns:     returnsSvc,
			Shipping:    shippingSvc,
			Webhook:     webhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
