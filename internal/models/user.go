package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountType represents the tier of a user account
type AccountType string

const (
	AccountAdmin    AccountType = "admin"
	AccountStaff    AccountType = "staff"
	AccountStandard AccountType = "standard"
	AccountLimited  AccountType = "limited"
)

// IsElevated reports whether the account has admin or staff privileges.
func (a AccountType) IsElevated() bool {
	return a == AccountAdmin || a == AccountStaff
}

// User represents a system user
type User struct {
	ID           uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	AccountType  AccountType    `gorm:"not null;default:'standard'" json:"account_type"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
