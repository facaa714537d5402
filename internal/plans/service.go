package plans

import (
	"context"
	"fmt"

	"github.com/parley-ai/parley-backend/internal/organizations"
	"github.com/parley-ai/parley-backend/pkg/db/models"
	"github.com/parley-ai/parley-backend/pkg/enums"
	pkgerrors "github.com/parley-ai/parley-backend/pkg/errors"
	"github.com/parley-ai/parley-backend/pkg/logger"
)

// Ledger is the slice of the subscription ledger the plan service consults
// when an organization drops to the free plan.
type Ledger interface {
	GetActive(ctx context.Context, organizationID int64, live bool) (*models.Subscription, error)
	Cancel(ctx context.Context, id int64) error
}

// Gateway cancels provider subscriptions. The provider remains the source of
// truth for subscription lifecycle; failures here are logged and the local
// switch continues, with the provider's deleted webhook as the backstop.
type Gateway interface {
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error
}

// AddonSKUs groups the three catalog rows that exist purely to carry add-on
// price ids. These are Plan rows, not entitlements.
type AddonSKUs struct {
	Messages *models.Plan
	Storage  *models.Plan
	Users    *models.Plan
}

// AddonValues carries the three entitlement counters for an update.
type AddonValues struct {
	ExtraMessages int64
	ExtraStorage  int64
	ExtraUsers    int64
}

// UpdateAddonOptions selects the target organization and whether values are
// deltas or absolutes.
type UpdateAddonOptions struct {
	OrganizationID  int64
	IncrementValues bool
}

// CustomLimits carries admin-set limits for an organization's private plan.
type CustomLimits struct {
	MessageLimit int64
	StorageLimit int64
	UserLimit    int64
}

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo    Repository
	OrgRepo organizations.Repository
	Ledger  Ledger
	Gateway Gateway
	Live    bool
	Logger  *logger.Logger
}

// Service owns the plan catalog and the organization's billing state.
type Service struct {
	repo    Repository
	orgRepo organizations.Repository
	ledger  Ledger
	gateway Gateway
	live    bool
	logg    *logger.Logger
}

// NewService builds a plan service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("plan repo required")
	}
	if params.OrgRepo == nil {
		return nil, fmt.Errorf("organization repo required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("subscription ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	return &Service{
		repo:    params.Repo,
		orgRepo: params.OrgRepo,
		ledger:  params.Ledger,
		gateway: params.Gateway,
		live:    params.Live,
		logg:    params.Logger,
	}, nil
}

// Live reports the billing mode the service was constructed with.
func (s *Service) Live() bool {
	return s.live
}

// GetAll returns the public catalog, cheapest first.
func (s *Service) GetAll(ctx context.Context) ([]models.Plan, error) {
	return s.repo.ListPlans(ctx)
}

// GetPlan fetches a plan by id, failing when it does not exist.
func (s *Service) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	plan, err := s.repo.FindPlanByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %d not found", id))
	}
	return plan, nil
}

// GetPlanByPriceID resolves a plan by the provider price id for the current
// billing mode. An unknown price returns nil, nil: webhook callers treat it
// as a legitimate negative.
func (s *Service) GetPlanByPriceID(ctx context.Context, priceID string) (*models.Plan, error) {
	return s.repo.FindPlanByPriceID(ctx, priceID, s.live)
}

// GetFreePlan returns the single free-slug plan and fails when the catalog
// is misconfigured.
func (s *Service) GetFreePlan(ctx context.Context) (*models.Plan, error) {
	plan, err := s.repo.FindPlanBySlug(ctx, enums.PlanSlugFree)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load free plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "free plan missing from catalog")
	}
	return plan, nil
}

// GetAddons lists every addon entitlement row.
func (s *Service) GetAddons(ctx context.Context) ([]models.AddonEntitlement, error) {
	return s.repo.ListEntitlements(ctx)
}

// GetAddon fetches a single entitlement row by id.
func (s *Service) GetAddon(ctx context.Context, id int64) (*models.AddonEntitlement, error) {
	return s.repo.FindEntitlementByID(ctx, id)
}

// GetAddonSKUs fetches the three add-on SKU plans keyed by kind. All three
// must exist for add-on checkout to work.
func (s *Service) GetAddonSKUs(ctx context.Context) (*AddonSKUs, error) {
	slugs := []enums.PlanSlug{
		enums.PlanSlugAddonMessages,
		enums.PlanSlugAddonStorage,
		enums.PlanSlugAddonUsers,
	}
	rows, err := s.repo.ListPlansBySlugs(ctx, slugs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load addon skus")
	}

	skus := &AddonSKUs{}
	for i := range rows {
		row := &rows[i]
		switch row.Slug {
		case enums.PlanSlugAddonMessages:
			skus.Messages = row
		case enums.PlanSlugAddonStorage:
			skus.Storage = row
		case enums.PlanSlugAddonUsers:
			skus.Users = row
		}
	}
	if skus.Messages == nil || skus.Storage == nil || skus.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "addon sku plans missing from catalog")
	}
	return skus, nil
}

// GetAddonForOrganization resolves the organization's entitlement row, or nil
// when the organization is unknown or has none.
func (s *Service) GetAddonForOrganization(ctx context.Context, organizationID int64) (*models.AddonEntitlement, error) {
	if organizationID == 0 {
		return nil, nil
	}
	org, err := s.orgRepo.FindByID(ctx, organizationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization")
	}
	if org == nil || org.AddonID == nil {
		return nil, nil
	}
	return s.repo.FindEntitlementByID(ctx, *org.AddonID)
}

// UpdateAddonForOrganization rewrites the organization's entitlement row. With
// IncrementValues the provided values are added to the current counters;
// otherwise they replace them. Either way all three fields are written. When
// the organization has no entitlement yet this is a no-op returning nil —
// entitlements are only created on the plan-change path.
func (s *Service) UpdateAddonForOrganization(ctx context.Context, values AddonValues, opts UpdateAddonOptions) (*models.AddonEntitlement, error) {
	entitlement, err := s.GetAddonForOrganization(ctx, opts.OrganizationID)
	if err != nil {
		return nil, err
	}
	if entitlement == nil {
		return nil, nil
	}

	if opts.IncrementValues {
		entitlement.ExtraMessages += values.ExtraMessages
		entitlement.ExtraStorage += values.ExtraStorage
		entitlement.ExtraUsers += values.ExtraUsers
	} else {
		entitlement.ExtraMessages = values.ExtraMessages
		entitlement.ExtraStorage = values.ExtraStorage
		entitlement.ExtraUsers = values.ExtraUsers
	}

	if err := s.repo.UpdateEntitlement(ctx, entitlement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update addon entitlement")
	}
	return entitlement, nil
}

// UpdateCustomLimitsForOrganization upserts the organization's private custom
// plan and points custom_plan_id at it. Admin-triggered; the only plan-state
// mutation that bypasses the webhook reconciler.
func (s *Service) UpdateCustomLimitsForOrganization(ctx context.Context, values CustomLimits, organizationID int64) (*models.Plan, error) {
	if organizationID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organization id is required")
	}

	org, err := s.orgRepo.FindByID(ctx, organizationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization")
	}
	if org == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
	}

	name := fmt.Sprintf("Custom Plan (%s, %d)", org.Name, org.ID)

	var custom *models.Plan
	if org.CustomPlanID != nil {
		custom, err = s.repo.FindPlanByID(ctx, *org.CustomPlanID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load custom plan")
		}
	}

	if custom != nil {
		custom.Name = name
		custom.Slug = enums.PlanSlugCustom
		custom.MessageLimit = values.MessageLimit
		custom.StorageLimit = values.StorageLimit
		custom.UserLimit = values.UserLimit
		if err := s.repo.UpdatePlan(ctx, custom); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update custom plan")
		}
	} else {
		custom = &models.Plan{
			Name:         name,
			Slug:         enums.PlanSlugCustom,
			MessageLimit: values.MessageLimit,
			StorageLimit: values.StorageLimit,
			UserLimit:    values.UserLimit,
		}
		if err := s.repo.CreatePlan(ctx, custom); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create custom plan")
		}
	}

	if org.CustomPlanID == nil || *org.CustomPlanID != custom.ID {
		org.CustomPlanID = &custom.ID
		if err := s.orgRepo.Update(ctx, org); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "point organization at custom plan")
		}
	}

	return custom, nil
}

// ChangePlanForOrganization moves the organization onto the given plan. All
// four identifiers must be present or the call is a silent no-op. A free
// target delegates entirely to SwitchToFreePlan: free is the absence of a
// paid plan, not a plan to buy.
func (s *Service) ChangePlanForOrganization(ctx context.Context, newPlanID int64, providerSubscriptionID string, organizationID, userID int64) (*models.Organization, error) {
	if newPlanID == 0 || providerSubscriptionID == "" || organizationID == 0 || userID == 0 {
		return nil, nil
	}

	member, err := s.orgRepo.IsMember(ctx, organizationID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check membership")
	}
	if !member {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user does not belong to organization")
	}

	org, err := s.orgRepo.FindByID(ctx, organizationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization")
	}
	if org == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
	}

	plan, err := s.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	if plan.Slug == enums.PlanSlugFree {
		if err := s.SwitchToFreePlan(ctx, organizationID, providerSubscriptionID); err != nil {
			return nil, err
		}
		return s.orgRepo.FindByID(ctx, organizationID)
	}

	if org.AddonID == nil && plan.Addons {
		entitlement := &models.AddonEntitlement{}
		if err := s.repo.CreateEntitlement(ctx, entitlement); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create addon entitlement")
		}
		org.AddonID = &entitlement.ID
	}

	org.PlanID = &plan.ID
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update organization plan")
	}
	return org, nil
}

// SwitchToFreePlan drops the organization onto the free plan. When the active
// ledger subscription matches the provided provider id it is cancelled at the
// gateway and in the ledger first; the plan pointer is set to free regardless,
// so repeated calls converge. The gateway cancel is best-effort: the provider
// is the source of truth and its deleted webhook reconciles any miss.
func (s *Service) SwitchToFreePlan(ctx context.Context, organizationID int64, providerSubscriptionID string) error {
	if organizationID == 0 {
		return nil
	}

	org, err := s.orgRepo.FindByID(ctx, organizationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organization")
	}
	if org == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
	}

	free, err := s.GetFreePlan(ctx)
	if err != nil {
		return err
	}

	if providerSubscriptionID != "" {
		active, err := s.ledger.GetActive(ctx, organizationID, s.live)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active subscription")
		}
		if active != nil && active.StripeSubscriptionID == providerSubscriptionID {
			if err := s.gateway.CancelSubscription(ctx, active.StripeSubscriptionID); err != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "stripe_subscription_id", active.StripeSubscriptionID),
					"gateway cancel failed, relying on provider webhook to reconcile")
			}
			if err := s.ledger.Cancel(ctx, active.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel ledger subscription")
			}
		}
	}

	org.PlanID = &free.ID
	if err := s.orgRepo.Update(ctx, org); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "switch organization to free plan")
	}
	return nil
}
