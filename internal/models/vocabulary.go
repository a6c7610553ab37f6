package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vocabulary entities describe how observations were produced. Each
// optionally belongs to a workspace; a nil workspace marks a system-wide
// entry maintained by staff.

// Sensor describes an instrument or observation method.
type Sensor struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	MethodType  string         `json:"method_type"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ObservedProperty names the phenomenon a datastream measures.
type ObservedProperty struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	Definition  string         `json:"definition"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Unit is the unit of measure for datastream results.
type Unit struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Name        string         `gorm:"not null" json:"name"`
	Symbol      string         `json:"symbol"`
	Definition  string         `json:"definition"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProcessingLevel describes the QC state of a datastream's data.
type ProcessingLevel struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Code        string         `gorm:"not null" json:"code"`
	Definition  string         `json:"definition"`
	Explanation string         `json:"explanation"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ResultQualifier annotates individual observation results.
type ResultQualifier struct {
	ID          uuid.UUID      `gorm:"type:text;primary_key" json:"id"`
	WorkspaceID *uuid.UUID     `gorm:"type:text;index" json:"workspace_id,omitempty"`
	Code        string         `gorm:"not null" json:"code"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hooks to generate UUIDs

func (s *Sensor) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (o *ObservedProperty) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (u *Unit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (p *ProcessingLevel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (r *ResultQualifier) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
