package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/parley-ai/parley-backend/internal/checkout"
	"github.com/parley-ai/parley-backend/internal/plans"
	"github.com/parley-ai/parley-backend/internal/subscriptions"
	"github.com/parley-ai/parley-backend/pkg/db/models"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
	"github.com/parley-ai/parley-backend/pkg/logger"
	"github.com/parley-ai/parley-backend/pkg/metrics"
)

type planCatalog interface {
	ChangePlanForOrganization(ctx context.Context, newPlanID int64, providerSubscriptionID string, organizationID, userID int64) (*models.Organization, error)
	UpdateAddonForOrganization(ctx context.Context, values plans.AddonValues, opts plans.UpdateAddonOptions) (*models.AddonEntitlement, error)
	SwitchToFreePlan(ctx context.Context, organizationID int64, providerSubscriptionID string) error
}

type ledger interface {
	Create(ctx context.Context, params subscriptions.CreateParams) (*models.Subscription, error)
	GetByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	Pause(ctx context.Context, id int64) error
	OnPlanChange(ctx context.Context, providerSubscriptionID, newPriceID string) error
}

// ServiceParams groups dependencies for the webhook reconciler.
type ServiceParams struct {
	Catalog planCatalog
	Ledger  ledger
	Live    bool
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

// Service reconciles gateway webhook events into local billing state. Events
// arrive at least once and out of order; every branch must tolerate replays.
type Service struct {
	catalog planCatalog
	ledger  ledger
	live    bool
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
}

// NewService builds a webhook reconciler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription ledger required")
	}
	return &Service{
		catalog: params.Catalog,
		ledger:  params.Ledger,
		live:    params.Live,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// HandleEvent dispatches a verified event. Unhandled event types, including
// every payment-intent and invoice event, are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)

	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if decodeErr := json.Unmarshal(event.Data.Raw, &session); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode checkout session event")
			break
		}
		err = s.handleCheckoutCompleted(ctx, eventType, &session)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if decodeErr := json.Unmarshal(event.Data.Raw, &sub); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode subscription event")
			break
		}
		err = s.handleSubscriptionDeleted(ctx, eventType, &sub)
	case stripe.EventTypeCustomerSubscriptionPaused:
		var sub stripe.Subscription
		if decodeErr := json.Unmarshal(event.Data.Raw, &sub); decodeErr != nil {
			err = pkgerrors.Wrap(pkgerrors.CodeValidation, decodeErr, "decode subscription event")
			break
		}
		err = s.handleSubscriptionPaused(ctx, eventType, &sub)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		err = s.handleSubscriptionUpdated(ctx, eventType, event)
	default:
		s.skip(ctx, eventType, "unhandled event type")
		return nil
	}

	if err != nil {
		s.metrics.IncFailed(eventType)
	}
	return err
}

// handleCheckoutCompleted applies a finished hosted-checkout. Subscription
// mode means a plan purchase; payment mode means an add-on purchase. A
// metadata bag this service did not write fails the decode and the event is
// acknowledged untouched.
func (s *Service) handleCheckoutCompleted(ctx context.Context, eventType string, session *stripe.CheckoutSession) error {
	switch session.Mode {
	case stripe.CheckoutSessionModeSubscription:
		meta, err := decodeCheckoutPlanMetadata(session.Metadata)
		if err != nil {
			s.skip(ctx, eventType, err.Error())
			return nil
		}
		providerSubID := objectID(session.Subscription)
		if providerSubID == "" {
			s.skip(ctx, eventType, "completed session carries no subscription id")
			return nil
		}

		if _, err := s.catalog.ChangePlanForOrganization(ctx, meta.NewPlanID, providerSubID, meta.OrganizationID, meta.UserID); err != nil {
			return err
		}
		if _, err := s.ledger.Create(ctx, subscriptions.CreateParams{
			PlanID:                 meta.NewPlanID,
			OrganizationID:         meta.OrganizationID,
			UserID:                 meta.UserID,
			ProviderSubscriptionID: providerSubID,
			ProviderCustomerID:     customerID(session.Customer),
			Live:                   s.live,
		}); err != nil {
			return err
		}
		s.metrics.IncProcessed(eventType)
		return nil

	case stripe.CheckoutSessionModePayment:
		if session.Metadata[checkout.MetadataKeyAction] != checkout.ActionPurchaseAddons {
			s.skip(ctx, eventType, "payment session without addon purchase tag")
			return nil
		}
		meta, err := decodeAddonPurchaseMetadata(session.Metadata)
		if err != nil {
			s.skip(ctx, eventType, err.Error())
			return nil
		}
		if _, err := s.catalog.UpdateAddonForOrganization(ctx,
			plans.AddonValues{
				ExtraMessages: meta.Messages,
				ExtraStorage:  meta.Storage,
				ExtraUsers:    meta.Users,
			},
			plans.UpdateAddonOptions{
				OrganizationID:  meta.OrganizationID,
				IncrementValues: true,
			}); err != nil {
			return err
		}
		s.metrics.IncProcessed(eventType)
		return nil

	default:
		s.skip(ctx, eventType, fmt.Sprintf("unhandled session mode %s", session.Mode))
		return nil
	}
}

// handleSubscriptionDeleted downgrades the organization unless the
// cancellation carries the in-app sentinel, in which case the cancel path
// already performed the switch and a second write would be redundant.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, eventType string, sub *stripe.Subscription) error {
	stored, err := s.ledger.GetByProviderID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		s.skip(ctx, eventType, "deleted subscription unknown to ledger")
		return nil
	}

	if cancellationComment(sub) == checkout.CancelledInAppComment {
		s.skip(ctx, eventType, "in-app cancellation already applied")
		return nil
	}

	if err := s.catalog.SwitchToFreePlan(ctx, stored.OrganizationID, sub.ID); err != nil {
		return err
	}
	s.metrics.IncProcessed(eventType)
	return nil
}

func (s *Service) handleSubscriptionPaused(ctx context.Context, eventType string, sub *stripe.Subscription) error {
	stored, err := s.ledger.GetByProviderID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		s.skip(ctx, eventType, "paused subscription unknown to ledger")
		return nil
	}
	if err := s.ledger.Pause(ctx, stored.ID); err != nil {
		return err
	}
	s.metrics.IncProcessed(eventType)
	return nil
}

// handleSubscriptionUpdated reacts only to genuine price changes: the event
// must carry a previous plan and the current plan id must differ from it.
// Any other attribute update is acknowledged untouched.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, eventType string, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
	}

	previousPlan, ok := previousPlanID(event.Data.PreviousAttributes)
	if !ok {
		s.skip(ctx, eventType, "update without plan change")
		return nil
	}
	currentPlan := currentPriceID(&sub)
	if currentPlan == "" || currentPlan == previousPlan {
		s.skip(ctx, eventType, "update without plan change")
		return nil
	}

	if err := s.ledger.OnPlanChange(ctx, sub.ID, currentPlan); err != nil {
		return err
	}
	s.metrics.IncProcessed(eventType)
	return nil
}

func (s *Service) skip(ctx context.Context, eventType, reason string) {
	s.metrics.IncSkipped(eventType)
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_type": eventType,
			"reason":     reason,
		}), "stripe event skipped")
	}
}

// objectID handles the id-or-expanded-object shape the gateway uses for
// session references.
func objectID(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.ID
}

func customerID(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func cancellationComment(sub *stripe.Subscription) string {
	if sub == nil || sub.CancellationDetails == nil {
		return ""
	}
	return sub.CancellationDetails.Comment
}

// currentPriceID reads the price off the first subscription item.
func currentPriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

// previousPlanID digs the old plan id out of the event's previous_attributes
// delta, which arrives as loosely typed JSON.
func previousPlanID(previous map[string]interface{}) (string, bool) {
	if previous == nil {
		return "", false
	}
	raw, ok := previous["plan"]
	if !ok {
		return "", false
	}
	planMap, ok := raw.(map[string]interface{})
	if !ok {
		return "", false
	}
	id, ok := planMap["id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
