package models

import (
	"time"

	"github.com/parley-ai/parley-backend/pkg/enums"
)

// Organization holds the billing-relevant slice of a tenant. PlanID nil means
// the organization is treated as free-equivalent by some call paths.
type Organization struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"column:name;not null" json:"name"`

	PlanID       *int64 `gorm:"column:plan_id" json:"plan_id"`
	AddonID      *int64 `gorm:"column:addon_id" json:"addon_id"`
	CustomPlanID *int64 `gorm:"column:custom_plan_id" json:"custom_plan_id"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// OrganizationMember links users to organizations.
type OrganizationMember struct {
	ID             int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrganizationID int64            `gorm:"column:organization_id;not null;index:idx_org_members_org_user,unique" json:"organization_id"`
	UserID         int64            `gorm:"column:user_id;not null;index:idx_org_members_org_user,unique" json:"user_id"`
	Role           enums.MemberRole `gorm:"column:role;not null;default:'member'" json:"role"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
