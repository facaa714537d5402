package models

import "time"

// User is the billing-relevant slice of an account.
type User struct {
	ID    int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email string `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Name  string `gorm:"column:name" json:"name"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
