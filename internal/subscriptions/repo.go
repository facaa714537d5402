package subscriptions

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parley-ai/parley-backend/pkg/db/models"
	"github.com/parley-ai/parley-backend/pkg/enums"
)

// Repository handles subscription ledger persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActive(ctx context.Context, organizationID int64, live bool) (*models.Subscription, error)
	FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	Upsert(ctx context.Context, subscription *models.Subscription) error
	UpdateStatus(ctx context.Context, id int64, status enums.SubscriptionStatus) error
	UpdatePlan(ctx context.Context, id int64, planID int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindActive returns the newest active subscription for the organization in
// the given billing mode, or nil.
func (r *repository) FindActive(ctx context.Context, organizationID int64, live bool) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND live = ?", organizationID, enums.SubscriptionStatusActive, live).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	if providerSubscriptionID == "" {
		return nil, nil
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", providerSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Upsert inserts the row or, when the provider subscription id already
// exists, refreshes it in place. Webhooks deliver at least once; a replay
// must not produce a second row.
func (r *repository) Upsert(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stripe_customer_id", "plan_id", "organization_id", "user_id", "mode", "status", "live", "updated_at",
			}),
		}).
		Create(subscription).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status enums.SubscriptionStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) UpdatePlan(ctx context.Context, id int64, planID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("plan_id", planID).Error
}
