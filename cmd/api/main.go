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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/craftcart-backend/api/routes"
	"github.com/angelmondragon/craftcart-backend/internal/cart"
	"github.com/angelmondragon/craftcart-backend/internal/checkout"
	"github.com/angelmondragon/craftcart-backend/internal/orders"
	"github.com/angelmondragon/craftcart-backend/internal/payments"
	"github.com/angelmondragon/craftcart-backend/internal/products"
	stripewebhook "github.com/angelmondragon/craftcart-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/craftcart-backend/pkg/config"
	"github.com/angelmondragon/craftcart-backend/pkg/db"
	"github.com/angelmondragon/craftcart-backend/pkg/env"
	"github.com/angelmondragon/craftcart-backend/pkg/logger"
	"github.com/angelmondragon/craftcart-backend/pkg/metrics"
	"github.com/angelmondragon/craftcart-backend/pkg/migrate"
	"github.com/angelmondragon/craftcart-backend/pkg/redis"
	stripeclient "github.com/angelmondragon/craftcart-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "craftcart-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "craftcart-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}

	gateway, err := buildGateway(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	shipping, err := cfg.Checkout.Shipping()
	if err != nil {
		logg.Error(ctx, "invalid shipping cost", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	productRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	productService, err := products.NewService(productRepo)
	requireService(ctx, logg, "product", err)

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo)
	requireService(ctx, logg, "cart", err)

	paymentService, err := payments.NewService(payments.ServiceParams{
		Gateway:  gateway,
		Carts:    cartService,
		Products: productRepo,
		Shipping: shipping,
		Currency: cfg.Stripe.NormalizedCurrency(),
		Metrics:  paymentMetrics,
	})
	requireService(ctx, logg, "payment", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Carts:    cartRepo,
		Orders:   ordersRepo,
		Products: productRepo,
		Payments: paymentService,
		Shipping: shipping,
		Currency: cfg.Stripe.NormalizedCurrency(),
		Metrics:  paymentMetrics,
	})
	requireService(ctx, logg, "checkout", err)

	ordersService, err := orders.NewService(ordersRepo, dbClient)
	requireService(ctx, logg, "orders", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:  ordersRepo,
		Logger:  logg,
		Metrics: paymentMetrics,
	})
	requireService(ctx, logg, "stripe webhook", err)

	webhookGuard, err := stripewebhook.NewEventGuard(redisClient, cfg.Webhooks.EventTTL)
	requireService(ctx, logg, "stripe webhook guard", err)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      registry,
			Metrics:       paymentMetrics,
			Carts:         cartService,
			Checkout:      checkoutService,
			Orders:        ordersService,
			Payments:      paymentService,
			Products:      productService,
			StripeWebhook: webhookService,
			WebhookGuard:  webhookGuard,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(serverCtx, "errors during shutdown", closeErr)
		exitCode = 1
	}
	os.Exit(exitCode)
}

// buildGateway returns nil when Stripe is not configured so card endpoints
// report a configuration error instead of blocking boot.
func buildGateway(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (payments.Gateway, error) {
	if cfg.APIKey != "" {
		client, err := stripeclient.NewClient(ctx, cfg, logg)
		if err != nil {
			return nil, err
		}
		logGateway(ctx, logg, client)
		return client, nil
	}
	if cfg.WebhookSecret != "" {
		verifier := stripeclient.NewWebhookVerifier(cfg.WebhookSecret)
		logGateway(ctx, logg, verifier)
		return verifier, nil
	}
	logg.Warn(ctx, "stripe not configured; card payments disabled")
	return nil, nil
}

func logGateway(ctx context.Context, logg *logger.Logger, client *stripeclient.Client) {
	ctx = logg.WithFields(ctx, map[string]any{
		"stripe_env":      client.Environment(),
		"currency":        client.Currency(),
		"can_charge":      client.CanCharge(),
		"verify_webhooks": client.CanVerifyWebhooks(),
	})
	switch {
	case !client.CanCharge():
		logg.Warn(ctx, "stripe api key missing; only webhook verification is available")
	case !client.CanVerifyWebhooks():
		logg.Warn(ctx, "stripe webhook secret missing; webhooks will be rejected")
	default:
		logg.Info(ctx, "stripe gateway ready")
	}
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to create "+name+" service", err)
	os.Exit(1)
}
