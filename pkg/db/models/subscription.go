package models

import (
	"time"

	"github.com/parley-ai/parley-backend/pkg/enums"
)

// Subscription mirrors the payment provider's subscription object. Rows are
// switched to cancelled, never deleted; pausing keeps the row present.
type Subscription struct {
	ID                   int64                    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;uniqueIndex" json:"stripe_subscription_id"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id" json:"stripe_customer_id"`
	PlanID               int64                    `gorm:"column:plan_id;not null" json:"plan_id"`
	OrganizationID       int64                    `gorm:"column:organization_id;not null;index" json:"organization_id"`
	UserID               int64                    `gorm:"column:user_id;not null" json:"user_id"`
	Mode                 enums.CheckoutMode       `gorm:"column:mode;not null;default:'subscription'" json:"mode"`
	Status               enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'" json:"status"`

	// Live records which provider mode created the row so test and live
	// subscriptions never match each other.
	Live bool `gorm:"column:live;not null;default:false" json:"live"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
