package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/parley-ai/parley-backend/pkg/enums"
)

// Plan is a catalog entry. Rows with addon_* slugs are purchasable SKUs that
// only exist to carry a price id; rows with the custom slug are private,
// one per organization.
type Plan struct {
	ID       int64              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name     string             `gorm:"column:name;not null" json:"name"`
	Slug     enums.PlanSlug     `gorm:"column:slug;not null;index" json:"slug"`
	Price    decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null;default:0" json:"price"`
	Duration enums.PlanDuration `gorm:"column:duration;not null;default:'monthly'" json:"duration"`

	MessageLimit int64 `gorm:"column:message_limit;not null;default:0" json:"message_limit"`
	StorageLimit int64 `gorm:"column:storage_limit;not null;default:0" json:"storage_limit"`
	UserLimit    int64 `gorm:"column:user_limit;not null;default:0" json:"user_limit"`

	// Addons reports whether organizations on this plan may purchase add-ons.
	Addons bool `gorm:"column:addons;not null;default:false" json:"addons"`

	StripePriceIDLive *string `gorm:"column:stripe_price_id_live" json:"-"`
	StripePriceIDTest *string `gorm:"column:stripe_price_id_test" json:"-"`

	// UnitSize is the bytes-per-purchase-unit for the storage SKU; zero for
	// every other row.
	UnitSize int64 `gorm:"column:unit_size;not null;default:0" json:"unit_size"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// PriceID returns the provider price id for the given billing mode, or nil
// when the column is not populated.
func (p *Plan) PriceID(live bool) *string {
	if p == nil {
		return nil
	}
	if live {
		return p.StripePriceIDLive
	}
	return p.StripePriceIDTest
}
