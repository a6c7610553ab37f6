package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Datastream is one time series of observations produced by a sensor at a
// thing for one observed property. The phenomenon window and value count
// are rollups refreshed by observation loads.
type Datastream struct {
	ID                 uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID        *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Workspace          *Workspace     `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	ThingID            uuid.UUID      `gorm:"type:text;not null;index" json:"thing_id"`
	Thing              Thing          `gorm:"foreignKey:ThingID" json:"thing,omitempty"`
	SensorID           uuid.UUID      `gorm:"type:text;not null" json:"sensor_id"`
	ObservedPropertyID uuid.UUID      `gorm:"type:text;not null" json:"observed_property_id"`
	UnitID             uuid.UUID      `gorm:"type:text;not null" json:"unit_id"`
	ProcessingLevelID  uuid.UUID      `gorm:"type:text;not null" json:"processing_level_id"`
	Name               string         `gorm:"not null" json:"name"`
	Description        string         `json:"description"`
	IsPrivate          bool           `gorm:"not null;default:false" json:"is_private"`
	ValueCount         int64          `gorm:"not null;default:0" json:"value_count"`
	PhenomenonBeginTime *time.Time    `json:"phenomenon_begin_time,omitempty"`
	PhenomenonEndTime  *time.Time     `json:"phenomenon_end_time,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (d *Datastream) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
