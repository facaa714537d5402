package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-ai/parley-backend/api/routes"
	"github.com/parley-ai/parley-backend/internal/checkout"
	"github.com/parley-ai/parley-backend/internal/organizations"
	"github.com/parley-ai/parley-backend/internal/plans"
	"github.com/parley-ai/parley-backend/internal/subscriptions"
	stripewebhook "github.com/parley-ai/parley-backend/internal/webhooks/stripe"
	"github.com/parley-ai/parley-backend/pkg/config"
	"github.com/parley-ai/parley-backend/pkg/db"
	"github.com/parley-ai/parley-backend/pkg/instance"
	"github.com/parley-ai/parley-backend/pkg/logger"
	"github.com/parley-ai/parley-backend/pkg/metrics"
	"github.com/parley-ai/parley-backend/pkg/migrate"
	"github.com/parley-ai/parley-backend/pkg/redis"
	pkgstripe "github.com/parley-ai/parley-backend/pkg/stripe"
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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}
	gateway := checkout.NewStripeClient(stripeClient)

	plansRepo := plans.NewRepository(dbClient.DB())
	orgsRepo := organizations.NewRepository(dbClient.DB())
	subsRepo := subscriptions.NewRepository(dbClient.DB())

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:         subsRepo,
		PlanResolver: plans.NewPriceResolver(plansRepo, stripeClient.Live()),
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	planService, err := plans.NewService(plans.ServiceParams{
		Repo:    plansRepo,
		OrgRepo: orgsRepo,
		Ledger:  subscriptionService,
		Gateway: checkout.NewGatewayCanceller(gateway),
		Live:    stripeClient.Live(),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Client:  gateway,
		Catalog: planService,
		Ledger:  subscriptionService,
		URLs:    cfg.URLs,
		Live:    stripeClient.Live(),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Catalog: planService,
		Ledger:  subscriptionService,
		Live:    stripeClient.Live(),
		Metrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Stripe.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	if err := checkoutService.Bootstrap(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe resources", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			PlanService:     planService,
			CheckoutService: checkoutService,
			StripeClient:    stripeClient,
			WebhookService:  webhookService,
			WebhookGuard:    webhookGuard,
			Metrics:         promhttp.Handler(),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
