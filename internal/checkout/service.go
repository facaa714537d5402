package checkout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v84"

	"github.com/parley-ai/parley-backend/internal/plans"
	"github.com/parley-ai/parley-backend/pkg/config"
	"github.com/parley-ai/parley-backend/pkg/db/models"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
	"github.com/parley-ai/parley-backend/pkg/logger"
)

// CancelledInAppComment marks gateway cancellations initiated from inside the
// product. The subscription-deleted webhook reads it back to avoid a second
// downgrade.
const CancelledInAppComment = "[cancelled in-app]"

// ActionPurchaseAddons tags add-on payment sessions in checkout metadata.
const ActionPurchaseAddons = "purchase-addons"

// Metadata keys carried on checkout sessions and read back by the webhook
// reconciler. The gateway only transports strings.
const (
	MetadataKeyUserID         = "userId"
	MetadataKeyNewPlanID      = "newPlanId"
	MetadataKeyOrganizationID = "organizationId"
	MetadataKeyAction         = "action"
	MetadataKeyPlanID         = "planId"
	MetadataKeyMessages       = "messages"
	MetadataKeyStorage        = "storage"
	MetadataKeyUsers          = "users"
)

// PlanCatalog is the slice of the plan service the checkout flow needs.
type PlanCatalog interface {
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	GetAddonSKUs(ctx context.Context) (*plans.AddonSKUs, error)
	SwitchToFreePlan(ctx context.Context, organizationID int64, providerSubscriptionID string) error
}

// Ledger is the slice of the subscription ledger the checkout flow needs.
type Ledger interface {
	GetActive(ctx context.Context, organizationID int64, live bool) (*models.Subscription, error)
}

// CheckoutPlanParams identifies who is buying which plan for which tenant.
type CheckoutPlanParams struct {
	UserID         int64
	Email          string
	NewPlanID      int64
	OrganizationID int64
}

// AddonQuantities carries requested add-on amounts. Storage is in bytes and
// is converted to billing units against the storage SKU's unit size.
type AddonQuantities struct {
	Messages int64
	Storage  int64
	Users    int64
}

// CheckoutAddonsParams identifies an add-on purchase request.
type CheckoutAddonsParams struct {
	UserID         int64
	Email          string
	OrganizationID int64
	Quantities     AddonQuantities
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Client  StripeClient
	Catalog PlanCatalog
	Ledger  Ledger
	URLs    config.URLConfig
	Live    bool
	Logger  *logger.Logger
}

// Service drives hosted-checkout and cancellation flows against the payment
// gateway.
type Service struct {
	client  StripeClient
	catalog PlanCatalog
	ledger  Ledger
	urls    config.URLConfig
	live    bool
	logg    *logger.Logger
}

// NewService builds a checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("subscription ledger required")
	}
	return &Service{
		client:  params.Client,
		catalog: params.Catalog,
		ledger:  params.Ledger,
		urls:    params.URLs,
		live:    params.Live,
		logg:    params.Logger,
	}, nil
}

// CreateCheckoutPlan returns a redirect URL for buying the given plan. An
// organization that already holds an active subscription is sent to the
// billing portal instead; a second checkout would create a second
// subscription.
func (s *Service) CreateCheckoutPlan(ctx context.Context, params CheckoutPlanParams) (string, error) {
	if params.UserID == 0 || params.NewPlanID == 0 || params.OrganizationID == 0 || params.Email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id, email, plan id and organization id are required")
	}

	active, err := s.ledger.GetActive(ctx, params.OrganizationID, s.live)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if active != nil {
		portal, err := s.client.CreateBillingPortalSession(ctx, &stripe.BillingPortalSessionParams{
			Customer:  stripe.String(active.StripeCustomerID),
			ReturnURL: stripe.String(s.urls.CheckoutCancelURL()),
		})
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing portal session")
		}
		return portal.URL, nil
	}

	plan, err := s.catalog.GetPlan(ctx, params.NewPlanID)
	if err != nil {
		return "", err
	}
	priceID := plan.PriceID(s.live)
	if priceID == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("plan %d has no price configured for this mode", plan.ID))
	}

	session, err := s.client.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(params.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    priceID,
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.urls.CheckoutSuccessURL()),
		CancelURL:  stripe.String(s.urls.CheckoutCancelURL()),
		Metadata: map[string]string{
			MetadataKeyUserID:         strconv.FormatInt(params.UserID, 10),
			MetadataKeyNewPlanID:      strconv.FormatInt(params.NewPlanID, 10),
			MetadataKeyOrganizationID: strconv.FormatInt(params.OrganizationID, 10),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session.URL, nil
}

// CreateCheckoutAddons returns a redirect URL for a one-off add-on purchase.
// Requires an active subscription on a plan that supports add-ons.
func (s *Service) CreateCheckoutAddons(ctx context.Context, params CheckoutAddonsParams) (string, error) {
	if params.UserID == 0 || params.OrganizationID == 0 || params.Email == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id, email and organization id are required")
	}

	active, err := s.ledger.GetActive(ctx, params.OrganizationID, s.live)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
	}
	if active == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "organization has no active subscription")
	}

	plan, err := s.catalog.GetPlan(ctx, active.PlanID)
	if err != nil {
		return "", err
	}
	if !plan.Addons {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "current plan does not support add-ons")
	}

	skus, err := s.catalog.GetAddonSKUs(ctx)
	if err != nil {
		return "", err
	}

	var lineItems []*stripe.CheckoutSessionLineItemParams
	appendItem := func(sku *models.Plan, quantity int64) error {
		if quantity <= 0 {
			return nil
		}
		priceID := sku.PriceID(s.live)
		if priceID == nil {
			return pkgerrors.New(pkgerrors.CodeInternal,
				fmt.Sprintf("addon sku %s has no price configured for this mode", sku.Slug))
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    priceID,
			Quantity: stripe.Int64(quantity),
		})
		return nil
	}

	// Storage comes in as bytes; the SKU bills whole units.
	storageUnits := int64(0)
	if params.Quantities.Storage > 0 {
		if skus.Storage.UnitSize <= 0 {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "storage sku has no unit size configured")
		}
		storageUnits = params.Quantities.Storage / skus.Storage.UnitSize
	}

	if err := appendItem(skus.Messages, params.Quantities.Messages); err != nil {
		return "", err
	}
	if err := appendItem(skus.Storage, storageUnits); err != nil {
		return "", err
	}
	if err := appendItem(skus.Users, params.Quantities.Users); err != nil {
		return "", err
	}
	if len(lineItems) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no add-on quantities requested")
	}

	session, err := s.client.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(params.Email),
		LineItems:     lineItems,
		SuccessURL:    stripe.String(s.urls.CheckoutSuccessURL()),
		CancelURL:     stripe.String(s.urls.CheckoutCancelURL()),
		Metadata: map[string]string{
			MetadataKeyAction:         ActionPurchaseAddons,
			MetadataKeyUserID:         strconv.FormatInt(params.UserID, 10),
			MetadataKeyOrganizationID: strconv.FormatInt(params.OrganizationID, 10),
			MetadataKeyPlanID:         strconv.FormatInt(plan.ID, 10),
			MetadataKeyMessages:       strconv.FormatInt(params.Quantities.Messages, 10),
			MetadataKeyStorage:        strconv.FormatInt(params.Quantities.Storage, 10),
			MetadataKeyUsers:          strconv.FormatInt(params.Quantities.Users, 10),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create addon checkout session")
	}
	return session.URL, nil
}

// CancelSubscription cancels at the gateway with proration and the in-app
// sentinel comment, then always performs the internal free-plan switch. The
// gateway leg is best-effort; the deleted webhook reconciles any miss.
func (s *Service) CancelSubscription(ctx context.Context, providerSubscriptionID string, organizationID int64) error {
	if providerSubscriptionID == "" || organizationID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id and organization id are required")
	}

	sub, err := s.client.GetSubscription(ctx, providerSubscriptionID, nil)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stripe_subscription_id", providerSubscriptionID),
				"gateway subscription lookup failed, proceeding with local switch")
		}
		sub = nil
	}
	if sub != nil {
		_, err := s.client.CancelSubscription(ctx, providerSubscriptionID, &stripe.SubscriptionCancelParams{
			Prorate: stripe.Bool(true),
			CancellationDetails: &stripe.SubscriptionCancelCancellationDetailsParams{
				Comment: stripe.String(CancelledInAppComment),
			},
		})
		if err != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stripe_subscription_id", providerSubscriptionID),
				"gateway cancel failed, relying on provider webhook to reconcile")
		}
	}

	return s.catalog.SwitchToFreePlan(ctx, organizationID, providerSubscriptionID)
}

// GatewayCanceller adapts the Stripe client to the plan service's cancel
// hook. Cancels carry the in-app sentinel so the deleted webhook does not
// downgrade a second time.
type GatewayCanceller struct {
	client StripeClient
}

// NewGatewayCanceller builds the adapter.
func NewGatewayCanceller(client StripeClient) *GatewayCanceller {
	return &GatewayCanceller{client: client}
}

func (g *GatewayCanceller) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	_, err := g.client.CancelSubscription(ctx, providerSubscriptionID, &stripe.SubscriptionCancelParams{
		Prorate: stripe.Bool(true),
		CancellationDetails: &stripe.SubscriptionCancelCancellationDetailsParams{
			Comment: stripe.String(CancelledInAppComment),
		},
	})
	return err
}
