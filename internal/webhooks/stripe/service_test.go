package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/parley-ai/parley-backend/internal/checkout"
	"github.com/parley-ai/parley-backend/internal/plans"
	"github.com/parley-ai/parley-backend/internal/subscriptions"
	"github.com/parley-ai/parley-backend/pkg/db/models"
)

type planChangeCall struct {
	newPlanID      int64
	providerSubID  string
	organizationID int64
	userID         int64
}

type addonUpdateCall struct {
	values plans.AddonValues
	opts   plans.UpdateAddonOptions
}

type freeSwitchCall struct {
	organizationID int64
	providerSubID  string
}

type stubCatalog struct {
	planChanges  []planChangeCall
	addonUpdates []addonUpdateCall
	freeSwitches []freeSwitchCall
}

func (s *stubCatalog) ChangePlanForOrganization(ctx context.Context, newPlanID int64, providerSubscriptionID string, organizationID, userID int64) (*models.Organization, error) {
	s.planChanges = append(s.planChanges, planChangeCall{newPlanID, providerSubscriptionID, organizationID, userID})
	return &models.Organization{ID: organizationID, PlanID: &newPlanID}, nil
}

func (s *stubCatalog) UpdateAddonForOrganization(ctx context.Context, values plans.AddonValues, opts plans.UpdateAddonOptions) (*models.AddonEntitlement, error) {
	s.addonUpdates = append(s.addonUpdates, addonUpdateCall{values, opts})
	return &models.AddonEntitlement{}, nil
}

func (s *stubCatalog) SwitchToFreePlan(ctx context.Context, organizationID int64, providerSubscriptionID string) error {
	s.freeSwitches = append(s.freeSwitches, freeSwitchCall{organizationID, providerSubscriptionID})
	return nil
}

func (s *stubCatalog) writeCount() int {
	return len(s.planChanges) + len(s.addonUpdates) + len(s.freeSwitches)
}

type stubLedger struct {
	byProviderID map[string]*models.Subscription

	created     []subscriptions.CreateParams
	paused      []int64
	planChanges map[string]string
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		byProviderID: map[string]*models.Subscription{},
		planChanges:  map[string]string{},
	}
}

func (s *stubLedger) Create(ctx context.Context, params subscriptions.CreateParams) (*models.Subscription, error) {
	s.created = append(s.created, params)
	return &models.Subscription{StripeSubscriptionID: params.ProviderSubscriptionID}, nil
}

func (s *stubLedger) GetByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	return s.byProviderID[providerSubscriptionID], nil
}

func (s *stubLedger) Pause(ctx context.Context, id int64) error {
	s.paused = append(s.paused, id)
	return nil
}

func (s *stubLedger) OnPlanChange(ctx context.Context, providerSubscriptionID, newPriceID string) error {
	s.planChanges[providerSubscriptionID] = newPriceID
	return nil
}

type reconcilerFixture struct {
	catalog *stubCatalog
	ledger  *stubLedger
	svc     *Service
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		catalog: &stubCatalog{},
		ledger:  newStubLedger(),
	}
	svc, err := NewService(ServiceParams{
		Catalog: f.catalog,
		Ledger:  f.ledger,
		Live:    false,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func checkoutCompletedEvent(t *testing.T, session *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription, previous map[string]interface{}) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_2",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw, PreviousAttributes: previous},
	}
}

func TestHandleEventUnknownTypeIsNoop(t *testing.T) {
	f := newReconcilerFixture(t)

	event := &stripe.Event{
		ID:   "evt_x",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: []byte("{}")},
	}
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Zero(t, f.catalog.writeCount())
}

func TestCheckoutCompletedSubscriptionMode(t *testing.T) {
	f := newReconcilerFixture(t)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Mode:         stripe.CheckoutSessionModeSubscription,
		Subscription: &stripe.Subscription{ID: "sub_1"},
		Customer:     &stripe.Customer{ID: "cus_1"},
		Metadata: map[string]string{
			checkout.MetadataKeyUserID:         "1",
			checkout.MetadataKeyNewPlanID:      "7",
			checkout.MetadataKeyOrganizationID: "3",
		},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	require.Len(t, f.catalog.planChanges, 1)
	assert.Equal(t, planChangeCall{7, "sub_1", 3, 1}, f.catalog.planChanges[0])

	require.Len(t, f.ledger.created, 1)
	created := f.ledger.created[0]
	assert.Equal(t, int64(7), created.PlanID)
	assert.Equal(t, int64(3), created.OrganizationID)
	assert.Equal(t, "sub_1", created.ProviderSubscriptionID)
	assert.Equal(t, "cus_1", created.ProviderCustomerID)
}

func TestCheckoutCompletedMalformedMetadataIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Mode:         stripe.CheckoutSessionModeSubscription,
		Subscription: &stripe.Subscription{ID: "sub_1"},
		Metadata: map[string]string{
			checkout.MetadataKeyUserID:         "1",
			checkout.MetadataKeyNewPlanID:      "not-a-number",
			checkout.MetadataKeyOrganizationID: "3",
		},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Zero(t, f.catalog.writeCount())
	assert.Empty(t, f.ledger.created)
}

func TestCheckoutCompletedPaymentModeIncrementsAddons(t *testing.T) {
	f := newReconcilerFixture(t)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Mode: stripe.CheckoutSessionModePayment,
		Metadata: map[string]string{
			checkout.MetadataKeyAction:         checkout.ActionPurchaseAddons,
			checkout.MetadataKeyUserID:         "1",
			checkout.MetadataKeyOrganizationID: "3",
			checkout.MetadataKeyPlanID:         "7",
			checkout.MetadataKeyMessages:       "500",
			checkout.MetadataKeyStorage:        "1073741824",
			checkout.MetadataKeyUsers:          "2",
		},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	require.Len(t, f.catalog.addonUpdates, 1)
	update := f.catalog.addonUpdates[0]
	assert.True(t, update.opts.IncrementValues)
	assert.Equal(t, int64(3), update.opts.OrganizationID)
	assert.Equal(t, plans.AddonValues{ExtraMessages: 500, ExtraStorage: 1073741824, ExtraUsers: 2}, update.values)
}

func TestCheckoutCompletedPaymentModeWithoutTagIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)

	event := checkoutCompletedEvent(t, &stripe.CheckoutSession{
		Mode: stripe.CheckoutSessionModePayment,
		Metadata: map[string]string{
			checkout.MetadataKeyUserID:         "1",
			checkout.MetadataKeyOrganizationID: "3",
		},
	})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Zero(t, f.catalog.writeCount())
}

func TestSubscriptionDeletedDowngrades(t *testing.T) {
	f := newReconcilerFixture(t)
	f.ledger.byProviderID["sub_1"] = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_1", OrganizationID: 3}

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, &stripe.Subscription{
		ID: "sub_1",
		CancellationDetails: &stripe.SubscriptionCancellationDetails{
			Comment: "customer churned via portal",
		},
	}, nil)
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Equal(t, []freeSwitchCall{{3, "sub_1"}}, f.catalog.freeSwitches)
}

func TestSubscriptionDeletedSentinelSuppressesDowngrade(t *testing.T) {
	f := newReconcilerFixture(t)
	f.ledger.byProviderID["sub_1"] = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_1", OrganizationID: 3}

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, &stripe.Subscription{
		ID: "sub_1",
		CancellationDetails: &stripe.SubscriptionCancellationDetails{
			Comment: checkout.CancelledInAppComment,
		},
	}, nil)
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	// The in-app cancel path already switched the plan; the webhook must not
	// produce a single additional write.
	assert.Zero(t, f.catalog.writeCount())
	assert.Empty(t, f.ledger.paused)
}

func TestSubscriptionDeletedUnknownToLedgerIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, &stripe.Subscription{ID: "sub_x"}, nil)
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Zero(t, f.catalog.writeCount())
}

func TestSubscriptionPaused(t *testing.T) {
	f := newReconcilerFixture(t)
	f.ledger.byProviderID["sub_1"] = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_1", OrganizationID: 3}

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionPaused, &stripe.Subscription{ID: "sub_1"}, nil)
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Equal(t, []int64{9}, f.ledger.paused)
	// Paused is not cancelled: no plan downgrade.
	assert.Empty(t, f.catalog.freeSwitches)
}

func TestSubscriptionUpdatedPlanChange(t *testing.T) {
	f := newReconcilerFixture(t)

	sub := &stripe.Subscription{
		ID: "sub_1",
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_new"}}},
		},
	}
	previous := map[string]interface{}{
		"plan": map[string]interface{}{"id": "price_old"},
	}
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub, previous)
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Equal(t, "price_new", f.ledger.planChanges["sub_1"])
}

func TestSubscriptionUpdatedNonPlanChangeIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)

	sub := &stripe.Subscription{
		ID: "sub_1",
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: "price_same"}}},
		},
	}

	// No previous plan at all.
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub,
		map[string]interface{}{"default_payment_method": "pm_old"})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	// Previous plan present but id unchanged.
	event = subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, sub,
		map[string]interface{}{"plan": map[string]interface{}{"id": "price_same"}})
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	assert.Empty(t, f.ledger.planChanges)
}
