package plans

import (
	"context"

	"gorm.io/gorm"

	"github.com/parley-ai/parley-backend/pkg/db/models"
	"github.com/parley-ai/parley-backend/pkg/enums"
)

// Repository handles plan catalog and addon entitlement persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ListPlans(ctx context.Context) ([]models.Plan, error)
	FindPlanByID(ctx context.Context, id int64) (*models.Plan, error)
	FindPlanBySlug(ctx context.Context, slug enums.PlanSlug) (*models.Plan, error)
	FindPlanByPriceID(ctx context.Context, priceID string, live bool) (*models.Plan, error)
	ListPlansBySlugs(ctx context.Context, slugs []enums.PlanSlug) ([]models.Plan, error)
	CreatePlan(ctx context.Context, plan *models.Plan) error
	UpdatePlan(ctx context.Context, plan *models.Plan) error

	ListEntitlements(ctx context.Context) ([]models.AddonEntitlement, error)
	FindEntitlementByID(ctx context.Context, id int64) (*models.AddonEntitlement, error)
	CreateEntitlement(ctx context.Context, entitlement *models.AddonEntitlement) error
	UpdateEntitlement(ctx context.Context, entitlement *models.AddonEntitlement) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plan repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListPlans returns the public catalog: every plan except the per-organization
// custom rows, cheapest first.
func (r *repository) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("slug <> ?", enums.PlanSlugCustom).
		Order("price ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) FindPlanByID(ctx context.Context, id int64) (*models.Plan, error) {
	if id == 0 {
		return nil, nil
	}
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindPlanBySlug fetches a single row; when the catalog holds more than one
// row for the slug the first match wins.
func (r *repository) FindPlanBySlug(ctx context.Context, slug enums.PlanSlug) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		Order("id ASC").
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// FindPlanByPriceID matches against the price column for the given billing
// mode only. A miss is a legitimate negative result, not an error.
func (r *repository) FindPlanByPriceID(ctx context.Context, priceID string, live bool) (*models.Plan, error) {
	if priceID == "" {
		return nil, nil
	}
	column := "stripe_price_id_test"
	if live {
		column = "stripe_price_id_live"
	}
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Where(column+" = ?", priceID).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListPlansBySlugs(ctx context.Context, slugs []enums.PlanSlug) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("slug IN ?", slugs).
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) ListEntitlements(ctx context.Context) ([]models.AddonEntitlement, error) {
	var entitlements []models.AddonEntitlement
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&entitlements).Error; err != nil {
		return nil, err
	}
	return entitlements, nil
}

func (r *repository) FindEntitlementByID(ctx context.Context, id int64) (*models.AddonEntitlement, error) {
	if id == 0 {
		return nil, nil
	}
	var entitlement models.AddonEntitlement
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entitlement).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entitlement, nil
}

func (r *repository) CreateEntitlement(ctx context.Context, entitlement *models.AddonEntitlement) error {
	return r.db.WithContext(ctx).Create(entitlement).Error
}

// UpdateEntitlement writes the full row, all three counters included.
func (r *repository) UpdateEntitlement(ctx context.Context, entitlement *models.AddonEntitlement) error {
	return r.db.WithContext(ctx).Save(entitlement).Error
}
