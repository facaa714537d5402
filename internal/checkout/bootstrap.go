package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
)

// webhookEventTypes are the only event types the reconciler acts on; the
// endpoint registration subscribes to exactly these.
var webhookEventTypes = []string{
	"checkout.session.completed",
	"customer.subscription.deleted",
	"customer.subscription.paused",
	"customer.subscription.updated",
}

// Bootstrap self-registers gateway infrastructure: the webhook endpoint and
// a default billing-portal configuration. Live mode only, idempotent, safe
// to run on every boot.
func (s *Service) Bootstrap(ctx context.Context) error {
	if !s.live {
		if s.logg != nil {
			s.logg.Debug(ctx, "test mode, skipping gateway self-registration")
		}
		return nil
	}
	if err := s.ensureWebhookEndpoint(ctx); err != nil {
		return err
	}
	return s.ensurePortalConfiguration(ctx)
}

// ensureWebhookEndpoint registers the webhook URL unless an endpoint with
// the exact same URL already exists.
func (s *Service) ensureWebhookEndpoint(ctx context.Context) error {
	url := s.urls.WebhookURL()

	endpoints, err := s.client.ListWebhookEndpoints(ctx, &stripe.WebhookEndpointListParams{})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list webhook endpoints")
	}
	for _, endpoint := range endpoints {
		if endpoint.URL == url {
			return nil
		}
	}

	if _, err := s.client.CreateWebhookEndpoint(ctx, &stripe.WebhookEndpointParams{
		URL:           stripe.String(url),
		EnabledEvents: stripe.StringSlice(webhookEventTypes),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register webhook endpoint")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "url", url), "registered gateway webhook endpoint")
	}
	return nil
}

// ensurePortalConfiguration creates a default active billing-portal
// configuration when none exists.
func (s *Service) ensurePortalConfiguration(ctx context.Context) error {
	configs, err := s.client.ListBillingPortalConfigurations(ctx, &stripe.BillingPortalConfigurationListParams{
		Active:    stripe.Bool(true),
		IsDefault: stripe.Bool(true),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list billing portal configurations")
	}
	if len(configs) > 0 {
		return nil
	}

	if _, err := s.client.CreateBillingPortalConfiguration(ctx, &stripe.BillingPortalConfigurationParams{
		BusinessProfile: &stripe.BillingPortalConfigurationBusinessProfileParams{
			Headline: stripe.String("Manage your Parley subscription"),
		},
		Features: &stripe.BillingPortalConfigurationFeaturesParams{
			InvoiceHistory: &stripe.BillingPortalConfigurationFeaturesInvoiceHistoryParams{
				Enabled: stripe.Bool(true),
			},
			PaymentMethodUpdate: &stripe.BillingPortalConfigurationFeaturesPaymentMethodUpdateParams{
				Enabled: stripe.Bool(true),
			},
			SubscriptionCancel: &stripe.BillingPortalConfigurationFeaturesSubscriptionCancelParams{
				Enabled: stripe.Bool(true),
			},
		},
		DefaultReturnURL: stripe.String(s.urls.CheckoutCancelURL()),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing portal configuration")
	}
	if s.logg != nil {
		s.logg.Info(ctx, "created default billing portal configuration")
	}
	return nil
}
