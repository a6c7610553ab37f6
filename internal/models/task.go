package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task binds a data connection to an orchestration system and carries the
// field mappings from source identifiers to target datastreams.
type Task struct {
	ID                    uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID           *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Name                  string         `gorm:"not null" json:"name"`
	DataConnectionID      uuid.UUID      `gorm:"type:text;not null;index" json:"data_connection_id"`
	DataConnection        DataConnection `gorm:"foreignKey:DataConnectionID" json:"data_connection,omitempty"`
	OrchestrationSystemID uuid.UUID      `gorm:"type:text;not null" json:"orchestration_system_id"`
	Mappings              []TaskMapping  `gorm:"foreignKey:TaskID" json:"mappings,omitempty"`
	Crontab               string         `json:"crontab,omitempty"`
	IntervalSeconds       *int           `json:"interval_seconds,omitempty"`
	NextRunAt             *time.Time     `json:"next_run_at,omitempty"`
	Active                bool           `gorm:"not null" json:"active"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook to generate UUID
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TaskMapping maps one source field identifier to one or more target paths.
type TaskMapping struct {
	ID               uint              `gorm:"primarykey" json:"id"`
	TaskID           uuid.UUID         `gorm:"type:text;not null;index" json:"task_id"`
	SourceIdentifier string            `gorm:"not null" json:"source_identifier"`
	Paths            []TaskMappingPath `gorm:"foreignKey:MappingID" json:"paths,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TableName specifies the table name for TaskMapping
func (TaskMapping) TableName() string {
	return "task_mappings"
}

// PathTransformation is one step applied to values on a mapping path, in
// order: scaled = value*Factor + Offset.
type PathTransformation struct {
	Type   string  `json:"type"`
	Factor float64 `json:"factor"`
	Offset float64 `json:"offset"`
}

// TaskMappingPath routes a mapped source field to one target datastream
// with an ordered list of value transformations.
type TaskMappingPath struct {
	ID              uint                 `gorm:"primarykey" json:"id"`
	MappingID       uint                 `gorm:"not null;index" json:"mapping_id"`
	DatastreamID    uuid.UUID            `gorm:"type:text;not null;index" json:"datastream_id"`
	Transformations []PathTransformation `gorm:"serializer:json" json:"transformations,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// TableName specifies the table name for TaskMappingPath
func (TaskMappingPath) TableName() string {
	return "task_mapping_paths"
}
