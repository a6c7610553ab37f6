package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is an alternative principal bound to one workspace and one
// API-key-enabled role. Only the SHA-256 digest of the secret is stored;
// the raw value is shown to the caller once at creation or regeneration.
type APIKey struct {
	ID          uuid.UUID  `gorm:"type:text;primary_key" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	WorkspaceID uuid.UUID  `gorm:"type:text;not null;index" json:"workspace_id"`
	Workspace   Workspace  `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	RoleID      uuid.UUID  `gorm:"type:text;not null;index" json:"role_id"`
	Role        Role       `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	KeyHash     string     `gorm:"not null;uniqueIndex" json:"-"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for APIKey
func (APIKey) TableName() string {
	return "api_keys"
}

// BeforeCreate hook to generate UUID
func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}
