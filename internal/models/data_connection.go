package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrchestrationSystem identifies the external mechanism that triggers task
// runs (an Airflow instance, a cron host, a streaming gateway).
type OrchestrationSystem struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	Type        string         `gorm:"not null" json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for OrchestrationSystem
func (OrchestrationSystem) TableName() string {
	return "orchestration_systems"
}

// BeforeCreate hook to generate UUID
func (o *OrchestrationSystem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// DataConnection describes one external-source configuration: which
// extractor, transformer and loader implementations to use and their
// settings. Credential-bearing settings values are encrypted at rest.
type DataConnection struct {
	ID                  uuid.UUID              `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID         *uuid.UUID             `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Workspace           *Workspace             `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	Name                string                 `gorm:"not null" json:"name"`
	ExtractorType       string                 `gorm:"not null" json:"extractor_type"`
	ExtractorSettings   map[string]interface{} `gorm:"serializer:json" json:"extractor_settings,omitempty"`
	TransformerType     string                 `gorm:"not null" json:"transformer_type"`
	TransformerSettings map[string]interface{} `gorm:"serializer:json" json:"transformer_settings,omitempty"`
	LoaderType          string                 `gorm:"not null" json:"loader_type"`
	LoaderSettings      map[string]interface{} `gorm:"serializer:json" json:"loader_settings,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	DeletedAt           gorm.DeletedAt         `gorm:"index" json:"-"`
}

// TableName specifies the table name for DataConnection
func (DataConnection) TableName() string {
	return "data_connections"
}

// BeforeCreate hook to generate UUID
func (c *DataConnection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
