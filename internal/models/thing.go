package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Thing represents a monitored site or station. A thing carries its own
// privacy flag in addition to the workspace's: both must be clear for the
// thing to be publicly visible.
type Thing struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Workspace   *Workspace     `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Elevation   *float64       `json:"elevation_m,omitempty"`
	IsPrivate   bool           `gorm:"not null;default:false" json:"is_private"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (t *Thing) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
