package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace is the tenancy boundary grouping monitoring resources,
// collaborators and ETL configuration under one owner.
type Workspace struct {
	ID        uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	Name      string         `gorm:"not null;uniqueIndex:idx_workspaces_owner_name" json:"name"`
	OwnerID   uuid.UUID      `gorm:"type:text;not null;index;uniqueIndex:idx_workspaces_owner_name" json:"owner_id"`
	Owner     User           `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	IsPrivate bool           `gorm:"not null;default:false" json:"is_private"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName ensures GORM uses the "workspaces" table
func (Workspace) TableName() string {
	return "workspaces"
}

// BeforeCreate hook to generate UUID
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
