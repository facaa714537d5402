package organizations

import (
	"context"

	"gorm.io/gorm"

	"github.com/parley-ai/parley-backend/pkg/db/models"
)

// Repository handles organization persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id int64) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	IsMember(ctx context.Context, organizationID, userID int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an organization repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Organization, error) {
	if id == 0 {
		return nil, nil
	}
	var org models.Organization
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&org).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) Update(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Save(org).Error
}

func (r *repository) IsMember(ctx context.Context, organizationID, userID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
