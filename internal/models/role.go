package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a named bundle of permissions. A role with a nil workspace is a
// system role usable from any workspace.
type Role struct {
	ID           uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Description  string         `json:"description"`
	WorkspaceID  *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Workspace    *Workspace     `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	IsUserRole   bool           `gorm:"not null" json:"is_user_role"`
	IsAPIKeyRole bool           `gorm:"not null;default:false" json:"is_apikey_role"`
	Permissions  []RolePermission `gorm:"foreignKey:RoleID" json:"permissions,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RolePermission grants one (permission_type, resource_type) pair to a role.
// "*" is a wildcard on either axis.
type RolePermission struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	RoleID         uuid.UUID `gorm:"type:text;not null;index" json:"role_id"`
	PermissionType string    `gorm:"not null" json:"permission_type"`
	ResourceType   string    `gorm:"not null" json:"resource_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for RolePermission
func (RolePermission) TableName() string {
	return "role_permissions"
}
