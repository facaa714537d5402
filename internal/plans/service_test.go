package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/parley-ai/parley-backend/internal/organizations"
	"github.com/parley-ai/parley-backend/pkg/db/models"
	"github.com/parley-ai/parley-backend/pkg/enums"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
)

type stubPlanRepo struct {
	plansByID    map[int64]*models.Plan
	plansBySlug  map[enums.PlanSlug]*models.Plan
	entitlements map[int64]*models.AddonEntitlement

	nextPlanID        int64
	nextEntitlementID int64

	entitlementWrites int
	planWrites        int
}

func newStubPlanRepo() *stubPlanRepo {
	return &stubPlanRepo{
		plansByID:         map[int64]*models.Plan{},
		plansBySlug:       map[enums.PlanSlug]*models.Plan{},
		entitlements:      map[int64]*models.AddonEntitlement{},
		nextPlanID:        100,
		nextEntitlementID: 500,
	}
}

func (s *stubPlanRepo) addPlan(plan *models.Plan) *models.Plan {
	if plan.ID == 0 {
		s.nextPlanID++
		plan.ID = s.nextPlanID
	}
	s.plansByID[plan.ID] = plan
	if _, taken := s.plansBySlug[plan.Slug]; !taken {
		s.plansBySlug[plan.Slug] = plan
	}
	return plan
}

func (s *stubPlanRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubPlanRepo) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range s.plansByID {
		if p.Slug != enums.PlanSlugCustom {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubPlanRepo) FindPlanByID(ctx context.Context, id int64) (*models.Plan, error) {
	return s.plansByID[id], nil
}

func (s *stubPlanRepo) FindPlanBySlug(ctx context.Context, slug enums.PlanSlug) (*models.Plan, error) {
	return s.plansBySlug[slug], nil
}

func (s *stubPlanRepo) FindPlanByPriceID(ctx context.Context, priceID string, live bool) (*models.Plan, error) {
	for _, p := range s.plansByID {
		if id := p.PriceID(live); id != nil && *id == priceID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *stubPlanRepo) ListPlansBySlugs(ctx context.Context, slugs []enums.PlanSlug) ([]models.Plan, error) {
	var out []models.Plan
	for _, slug := range slugs {
		if p, ok := s.plansBySlug[slug]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubPlanRepo) CreatePlan(ctx context.Context, plan *models.Plan) error {
	s.addPlan(plan)
	s.planWrites++
	return nil
}

func (s *stubPlanRepo) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	s.plansByID[plan.ID] = plan
	s.planWrites++
	return nil
}

func (s *stubPlanRepo) ListEntitlements(ctx context.Context) ([]models.AddonEntitlement, error) {
	var out []models.AddonEntitlement
	for _, e := range s.entitlements {
		out = append(out, *e)
	}
	return out, nil
}

func (s *stubPlanRepo) FindEntitlementByID(ctx context.Context, id int64) (*models.AddonEntitlement, error) {
	return s.entitlements[id], nil
}

func (s *stubPlanRepo) CreateEntitlement(ctx context.Context, entitlement *models.AddonEntitlement) error {
	s.nextEntitlementID++
	entitlement.ID = s.nextEntitlementID
	s.entitlements[entitlement.ID] = entitlement
	s.entitlementWrites++
	return nil
}

func (s *stubPlanRepo) UpdateEntitlement(ctx context.Context, entitlement *models.AddonEntitlement) error {
	s.entitlements[entitlement.ID] = entitlement
	s.entitlementWrites++
	return nil
}

type stubOrgRepo struct {
	orgs    map[int64]*models.Organization
	members map[int64]map[int64]bool
	updates int
}

func newStubOrgRepo() *stubOrgRepo {
	return &stubOrgRepo{
		orgs:    map[int64]*models.Organization{},
		members: map[int64]map[int64]bool{},
	}
}

func (s *stubOrgRepo) WithTx(tx *gorm.DB) organizations.Repository { return s }

func (s *stubOrgRepo) FindByID(ctx context.Context, id int64) (*models.Organization, error) {
	return s.orgs[id], nil
}

func (s *stubOrgRepo) Update(ctx context.Context, org *models.Organization) error {
	s.orgs[org.ID] = org
	s.updates++
	return nil
}

func (s *stubOrgRepo) IsMember(ctx context.Context, organizationID, userID int64) (bool, error) {
	return s.members[organizationID][userID], nil
}

func (s *stubOrgRepo) addMember(organizationID, userID int64) {
	if s.members[organizationID] == nil {
		s.members[organizationID] = map[int64]bool{}
	}
	s.members[organizationID][userID] = true
}

type stubLedger struct {
	active    *models.Subscription
	cancelled []int64
}

func (s *stubLedger) GetActive(ctx context.Context, organizationID int64, live bool) (*models.Subscription, error) {
	return s.active, nil
}

func (s *stubLedger) Cancel(ctx context.Context, id int64) error {
	s.cancelled = append(s.cancelled, id)
	s.active = nil
	return nil
}

type stubGateway struct {
	cancelled []string
	err       error
}

func (s *stubGateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	if s.err != nil {
		return s.err
	}
	s.cancelled = append(s.cancelled, providerSubscriptionID)
	return nil
}

type planFixture struct {
	repo    *stubPlanRepo
	orgRepo *stubOrgRepo
	ledger  *stubLedger
	gateway *stubGateway
	svc     *Service

	free *models.Plan
	paid *models.Plan
}

func newPlanFixture(t *testing.T) *planFixture {
	t.Helper()
	f := &planFixture{
		repo:    newStubPlanRepo(),
		orgRepo: newStubOrgRepo(),
		ledger:  &stubLedger{},
		gateway: &stubGateway{},
	}
	f.free = f.repo.addPlan(&models.Plan{Name: "Free", Slug: enums.PlanSlugFree})
	f.paid = f.repo.addPlan(&models.Plan{Name: "Small Team", Slug: enums.PlanSlugSmallTeamMonthly, Addons: true})

	svc, err := NewService(ServiceParams{
		Repo:    f.repo,
		OrgRepo: f.orgRepo,
		Ledger:  f.ledger,
		Gateway: f.gateway,
		Live:    false,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestGetPlanNotFound(t *testing.T) {
	f := newPlanFixture(t)

	_, err := f.svc.GetPlan(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestGetPlanByPriceIDUnknownIsNil(t *testing.T) {
	f := newPlanFixture(t)

	plan, err := f.svc.GetPlanByPriceID(context.Background(), "price_nope")
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestGetAddonSKUsRequiresAllThree(t *testing.T) {
	f := newPlanFixture(t)
	f.repo.addPlan(&models.Plan{Name: "Messages", Slug: enums.PlanSlugAddonMessages})
	f.repo.addPlan(&models.Plan{Name: "Storage", Slug: enums.PlanSlugAddonStorage})

	_, err := f.svc.GetAddonSKUs(context.Background())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))

	f.repo.addPlan(&models.Plan{Name: "Users", Slug: enums.PlanSlugAddonUsers})

	skus, err := f.svc.GetAddonSKUs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enums.PlanSlugAddonMessages, skus.Messages.Slug)
	assert.Equal(t, enums.PlanSlugAddonStorage, skus.Storage.Slug)
	assert.Equal(t, enums.PlanSlugAddonUsers, skus.Users.Slug)
}

func TestUpdateAddonIncrementVsReplace(t *testing.T) {
	f := newPlanFixture(t)
	entitlement := &models.AddonEntitlement{ExtraMessages: 10, ExtraStorage: 20, ExtraUsers: 3}
	require.NoError(t, f.repo.CreateEntitlement(context.Background(), entitlement))
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme", AddonID: &entitlement.ID}

	got, err := f.svc.UpdateAddonForOrganization(context.Background(),
		AddonValues{ExtraMessages: 5, ExtraUsers: 1},
		UpdateAddonOptions{OrganizationID: 1, IncrementValues: true})
	require.NoError(t, err)
	assert.Equal(t, int64(15), got.ExtraMessages)
	assert.Equal(t, int64(20), got.ExtraStorage)
	assert.Equal(t, int64(4), got.ExtraUsers)

	got, err = f.svc.UpdateAddonForOrganization(context.Background(),
		AddonValues{ExtraMessages: 100},
		UpdateAddonOptions{OrganizationID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.ExtraMessages)
	assert.Equal(t, int64(0), got.ExtraStorage)
	assert.Equal(t, int64(0), got.ExtraUsers)
}

func TestUpdateAddonWithoutEntitlementIsNoop(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme"}

	got, err := f.svc.UpdateAddonForOrganization(context.Background(),
		AddonValues{ExtraMessages: 5},
		UpdateAddonOptions{OrganizationID: 1, IncrementValues: true})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, f.repo.entitlementWrites)
}

func TestUpdateCustomLimitsUpsertsOnce(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme"}

	first, err := f.svc.UpdateCustomLimitsForOrganization(context.Background(),
		CustomLimits{MessageLimit: 1000, StorageLimit: 50, UserLimit: 25}, 1)
	require.NoError(t, err)
	assert.Equal(t, enums.PlanSlugCustom, first.Slug)
	assert.Equal(t, "Custom Plan (Acme, 1)", first.Name)
	require.NotNil(t, f.orgRepo.orgs[1].CustomPlanID)
	assert.Equal(t, first.ID, *f.orgRepo.orgs[1].CustomPlanID)

	second, err := f.svc.UpdateCustomLimitsForOrganization(context.Background(),
		CustomLimits{MessageLimit: 2000, StorageLimit: 50, UserLimit: 25}, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(2000), second.MessageLimit)
}

func TestChangePlanMissingIdentifiersIsNoop(t *testing.T) {
	f := newPlanFixture(t)

	org, err := f.svc.ChangePlanForOrganization(context.Background(), 0, "sub_1", 1, 1)
	require.NoError(t, err)
	assert.Nil(t, org)

	org, err = f.svc.ChangePlanForOrganization(context.Background(), f.paid.ID, "", 1, 1)
	require.NoError(t, err)
	assert.Nil(t, org)
}

func TestChangePlanRejectsNonMember(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme"}

	_, err := f.svc.ChangePlanForOrganization(context.Background(), f.paid.ID, "sub_1", 1, 42)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestChangePlanCreatesEntitlementLazily(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme"}
	f.orgRepo.addMember(1, 42)

	org, err := f.svc.ChangePlanForOrganization(context.Background(), f.paid.ID, "sub_1", 1, 42)
	require.NoError(t, err)
	require.NotNil(t, org)
	require.NotNil(t, org.PlanID)
	assert.Equal(t, f.paid.ID, *org.PlanID)
	require.NotNil(t, org.AddonID)

	entitlement := f.repo.entitlements[*org.AddonID]
	require.NotNil(t, entitlement)
	assert.Zero(t, entitlement.ExtraMessages)
	assert.Zero(t, entitlement.ExtraStorage)
	assert.Zero(t, entitlement.ExtraUsers)

	// A second change keeps the same entitlement row.
	writes := f.repo.entitlementWrites
	_, err = f.svc.ChangePlanForOrganization(context.Background(), f.paid.ID, "sub_1", 1, 42)
	require.NoError(t, err)
	assert.Equal(t, writes, f.repo.entitlementWrites)
}

func TestChangePlanToFreeDelegates(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme", PlanID: &f.paid.ID}
	f.orgRepo.addMember(1, 42)
	f.ledger.active = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_1", OrganizationID: 1}

	org, err := f.svc.ChangePlanForOrganization(context.Background(), f.free.ID, "sub_1", 1, 42)
	require.NoError(t, err)
	require.NotNil(t, org)
	require.NotNil(t, org.PlanID)
	assert.Equal(t, f.free.ID, *org.PlanID)
	assert.Equal(t, []string{"sub_1"}, f.gateway.cancelled)
	assert.Equal(t, []int64{9}, f.ledger.cancelled)
}

func TestSwitchToFreePlanIsIdempotent(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme", PlanID: &f.paid.ID}
	f.ledger.active = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_1", OrganizationID: 1}

	require.NoError(t, f.svc.SwitchToFreePlan(context.Background(), 1, "sub_1"))
	require.NoError(t, f.svc.SwitchToFreePlan(context.Background(), 1, "sub_1"))

	assert.Equal(t, []int64{9}, f.ledger.cancelled)
	require.NotNil(t, f.orgRepo.orgs[1].PlanID)
	assert.Equal(t, f.free.ID, *f.orgRepo.orgs[1].PlanID)
}

func TestSwitchToFreePlanSurvivesGatewayFailure(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme", PlanID: &f.paid.ID}
	f.ledger.active = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_1", OrganizationID: 1}
	f.gateway.err = errors.New("gateway unavailable")

	require.NoError(t, f.svc.SwitchToFreePlan(context.Background(), 1, "sub_1"))

	assert.Equal(t, []int64{9}, f.ledger.cancelled)
	require.NotNil(t, f.orgRepo.orgs[1].PlanID)
	assert.Equal(t, f.free.ID, *f.orgRepo.orgs[1].PlanID)
}

func TestSwitchToFreePlanMismatchedProviderIDLeavesLedger(t *testing.T) {
	f := newPlanFixture(t)
	f.orgRepo.orgs[1] = &models.Organization{ID: 1, Name: "Acme", PlanID: &f.paid.ID}
	f.ledger.active = &models.Subscription{ID: 9, StripeSubscriptionID: "sub_other", OrganizationID: 1}

	require.NoError(t, f.svc.SwitchToFreePlan(context.Background(), 1, "sub_1"))

	assert.Empty(t, f.ledger.cancelled)
	assert.Empty(t, f.gateway.cancelled)
	require.NotNil(t, f.orgRepo.orgs[1].PlanID)
	assert.Equal(t, f.free.ID, *f.orgRepo.orgs[1].PlanID)
}
