package models

import "time"

// AddonEntitlement accumulates the incremental limits an organization has
// purchased. Updates always overwrite all three counters; increments are
// computed by the caller before the write.
type AddonEntitlement struct {
	ID            int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExtraMessages int64 `gorm:"column:extra_messages;not null;default:0" json:"extra_messages"`
	ExtraStorage  int64 `gorm:"column:extra_storage;not null;default:0" json:"extra_storage"`
	ExtraUsers    int64 `gorm:"column:extra_users;not null;default:0" json:"extra_users"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
