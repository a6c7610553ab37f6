package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskRunStatus represents the state of a task run
type TaskRunStatus string

const (
	RunStatusRunning TaskRunStatus = "RUNNING"
	RunStatusSuccess TaskRunStatus = "SUCCESS"
	RunStatusFailure TaskRunStatus = "FAILURE"
)

// Terminal reports whether the status is a final state.
func (s TaskRunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailure
}

// TaskRun is one execution instance of a task. FinishedAt and Result are
// set exactly once, when the run reaches a terminal state.
type TaskRun struct {
	ID         uuid.UUID              `gorm:"type:text;primary_key" json:"id"`
	TaskID     uuid.UUID              `gorm:"type:text;not null;index" json:"task_id"`
	Task       Task                   `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Status     TaskRunStatus          `gorm:"not null;default:'RUNNING'" json:"status"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Result     map[string]interface{} `gorm:"serializer:json" json:"result,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// TableName specifies the table name for TaskRun
func (TaskRun) TableName() string {
	return "task_runs"
}

// BeforeCreate hook to generate UUID
func (r *TaskRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
