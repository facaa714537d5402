package subscriptions

import (
	"context"
	"fmt"

	"github.com/parley-ai/parley-backend/pkg/db/models"
	"github.com/parley-ai/parley-backend/pkg/enums"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
	"github.com/parley-ai/parley-backend/pkg/logger"
)

// PlanResolver maps provider price ids onto catalog plans in the current
// billing mode.
type PlanResolver interface {
	GetPlanByPriceID(ctx context.Context, priceID string) (*models.Plan, error)
}

// CreateParams captures the data required to mirror a provider subscription.
type CreateParams struct {
	PlanID                 int64
	OrganizationID         int64
	UserID                 int64
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Live                   bool
}

// ServiceParams groups dependencies for the subscription ledger.
type ServiceParams struct {
	Repo         Repository
	PlanResolver PlanResolver
	Logger       *logger.Logger
}

// Service is the subscription ledger: an append/update mirror of the payment
// provider's subscription objects keyed by their external id.
type Service struct {
	repo     Repository
	resolver PlanResolver
	logg     *logger.Logger
}

// NewService builds a subscription ledger service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.PlanResolver == nil {
		return nil, fmt.Errorf("plan resolver required")
	}
	return &Service{
		repo:     params.Repo,
		resolver: params.PlanResolver,
		logg:     params.Logger,
	}, nil
}

// GetActive returns the organization's active subscription in the given
// billing mode, or nil.
func (s *Service) GetActive(ctx context.Context, organizationID int64, live bool) (*models.Subscription, error) {
	if organizationID == 0 {
		return nil, nil
	}
	return s.repo.FindActive(ctx, organizationID, live)
}

// GetByProviderID looks a ledger row up by the provider's subscription id.
func (s *Service) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	return s.repo.FindByProviderID(ctx, providerSubscriptionID)
}

// Create mirrors a provider subscription into the ledger. Keyed on the
// provider id: redelivered checkout webhooks update the existing row instead
// of inserting a duplicate.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Subscription, error) {
	if params.ProviderSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider subscription id is required")
	}
	sub := &models.Subscription{
		StripeSubscriptionID: params.ProviderSubscriptionID,
		StripeCustomerID:     params.ProviderCustomerID,
		PlanID:               params.PlanID,
		OrganizationID:       params.OrganizationID,
		UserID:               params.UserID,
		Mode:                 enums.CheckoutModeSubscription,
		Status:               enums.SubscriptionStatusActive,
		Live:                 params.Live,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}
	return sub, nil
}

// Cancel flips the ledger row to cancelled. This is the ledger-side flip
// only; cancelling at the gateway is the adapter's job.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	if err := s.repo.UpdateStatus(ctx, id, enums.SubscriptionStatusCancelled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
	}
	return nil
}

// Pause flips the ledger row to paused. Paused is distinct from cancelled:
// the row stays present and no plan downgrade happens.
func (s *Service) Pause(ctx context.Context, id int64) error {
	if err := s.repo.UpdateStatus(ctx, id, enums.SubscriptionStatusPaused); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause subscription")
	}
	return nil
}

// OnPlanChange swaps the ledger row's plan after the provider reports a
// price change. An unrecognized price id is logged and skipped; the provider
// may bill prices this catalog does not track.
func (s *Service) OnPlanChange(ctx context.Context, providerSubscriptionID, newPriceID string) error {
	sub, err := s.repo.FindByProviderID(ctx, providerSubscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "stripe_subscription_id", providerSubscriptionID),
				"plan change for unknown subscription")
		}
		return nil
	}

	plan, err := s.resolver.GetPlanByPriceID(ctx, newPriceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve plan by price")
	}
	if plan == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "price_id", newPriceID),
				"plan change with unrecognized price id")
		}
		return nil
	}

	if err := s.repo.UpdatePlan(ctx, sub.ID, plan.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription plan")
	}
	return nil
}
