package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parley-ai/parley-backend/api/controllers"
	billingcontrollers "github.com/parley-ai/parley-backend/api/controllers/billing"
	webhookcontrollers "github.com/parley-ai/parley-backend/api/controllers/webhooks"
	"github.com/parley-ai/parley-backend/api/middleware"
	stripewebhook "github.com/parley-ai/parley-backend/internal/webhooks/stripe"
	"github.com/parley-ai/parley-backend/pkg/config"
	"github.com/parley-ai/parley-backend/pkg/logger"
	pkgstripe "github.com/parley-ai/parley-backend/pkg/stripe"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              controllers.Pinger
	Redis           controllers.Pinger
	PlanService     billingcontrollers.PlanService
	CheckoutService billingcontrollers.CheckoutService
	StripeClient    *pkgstripe.Client
	WebhookService  *stripewebhook.Service
	WebhookGuard    *stripewebhook.IdempotencyGuard
	Metrics         http.Handler
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
	)

	r.Get("/healthz", controllers.HealthLive(deps.Config))
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DB, deps.Redis))
	})

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.WebhookService, deps.StripeClient, deps.WebhookGuard, deps.Logger))
	})

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Get("/plans", billingcontrollers.PlansList(deps.PlanService, deps.Logger))
		r.Get("/plans/{id}", billingcontrollers.PlanGet(deps.PlanService, deps.Logger))
		r.Get("/organizations/{id}/addon", billingcontrollers.OrganizationAddonGet(deps.PlanService, deps.Logger))
		r.Put("/organizations/{id}/limits", billingcontrollers.OrganizationLimitsUpdate(deps.PlanService, deps.Logger))
		r.Post("/checkout/plan", billingcontrollers.CheckoutPlan(deps.CheckoutService, deps.Logger))
		r.Post("/checkout/addons", billingcontrollers.CheckoutAddons(deps.CheckoutService, deps.Logger))
		r.Post("/subscriptions/cancel", billingcontrollers.CancelSubscription(deps.CheckoutService, deps.Logger))
	})

	return r
}
