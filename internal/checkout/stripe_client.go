package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	portalconfiguration "github.com/stripe/stripe-go/v84/billingportal/configuration"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/subscription"
	"github.com/stripe/stripe-go/v84/webhookendpoint"

	pkgstripe "github.com/parley-ai/parley-backend/pkg/stripe"
)

// StripeClient exposes the subset of Stripe operations required by the
// checkout service.
type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CreateBillingPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
	GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
	ListWebhookEndpoints(ctx context.Context, params *stripe.WebhookEndpointListParams) ([]*stripe.WebhookEndpoint, error)
	CreateWebhookEndpoint(ctx context.Context, params *stripe.WebhookEndpointParams) (*stripe.WebhookEndpoint, error)
	ListBillingPortalConfigurations(ctx context.Context, params *stripe.BillingPortalConfigurationListParams) ([]*stripe.BillingPortalConfiguration, error)
	CreateBillingPortalConfiguration(ctx context.Context, params *stripe.BillingPortalConfigurationParams) (*stripe.BillingPortalConfiguration, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the global Stripe bindings so the checkout service
// can be tested.
func NewStripeClient(api *pkgstripe.Client) StripeClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return checkoutsession.New(params)
}

func (w *stripeClientWrapper) CreateBillingPortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return portalsession.New(params)
}

func (w *stripeClientWrapper) GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (w *stripeClientWrapper) CancelSubscription(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	if params != nil {
		params.Context = ctx
	}
	return subscription.Cancel(id, params)
}

func (w *stripeClientWrapper) ListWebhookEndpoints(ctx context.Context, params *stripe.WebhookEndpointListParams) ([]*stripe.WebhookEndpoint, error) {
	if params == nil {
		params = &stripe.WebhookEndpointListParams{}
	}
	params.Context = ctx
	var endpoints []*stripe.WebhookEndpoint
	iter := webhookendpoint.List(params)
	for iter.Next() {
		endpoints = append(endpoints, iter.WebhookEndpoint())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return endpoints, nil
}

func (w *stripeClientWrapper) CreateWebhookEndpoint(ctx context.Context, params *stripe.WebhookEndpointParams) (*stripe.WebhookEndpoint, error) {
	if params != nil {
		params.Context = ctx
	}
	return webhookendpoint.New(params)
}

func (w *stripeClientWrapper) ListBillingPortalConfigurations(ctx context.Context, params *stripe.BillingPortalConfigurationListParams) ([]*stripe.BillingPortalConfiguration, error) {
	if params == nil {
		params = &stripe.BillingPortalConfigurationListParams{}
	}
	params.Context = ctx
	var configs []*stripe.BillingPortalConfiguration
	iter := portalconfiguration.List(params)
	for iter.Next() {
		configs = append(configs, iter.BillingPortalConfiguration())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

func (w *stripeClientWrapper) CreateBillingPortalConfiguration(ctx context.Context, params *stripe.BillingPortalConfigurationParams) (*stripe.BillingPortalConfiguration, error) {
	if params != nil {
		params.Context = ctx
	}
	return portalconfiguration.New(params)
}
