package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"gorm.io/gorm"
)

// VocabularyService provides CRUD for the five vocabulary types, which
// share the same shape: an optional workspace, a handful of descriptive
// columns, and staff-maintained system-wide entries under a nil
// workspace. One generic implementation covers all of them.
type VocabularyService[T any] struct {
	db          *gorm.DB
	resource    permissions.ResourceType
	workspaceID func(*T) *uuid.UUID
	setOwner    func(*T, *uuid.UUID)
}

// NewSensorService creates the sensor vocabulary service.
func NewSensorService(db *gorm.DB) *VocabularyService[models.Sensor] {
	return &VocabularyService[models.Sensor]{
		db:          db,
		resource:    permissions.ResourceSensor,
		workspaceID: func(s *models.Sensor) *uuid.UUID { return s.WorkspaceID },
		setOwner:    func(s *models.Sensor, id *uuid.UUID) { s.WorkspaceID = id },
	}
}

// NewObservedPropertyService creates the observed property vocabulary service.
func NewObservedPropertyService(db *gorm.DB) *VocabularyService[models.ObservedProperty] {
	return &VocabularyService[models.ObservedProperty]{
		db:          db,
		resource:    permissions.ResourceObservedProperty,
		workspaceID: func(o *models.ObservedProperty) *uuid.UUID { return o.WorkspaceID },
		setOwner:    func(o *models.ObservedProperty, id *uuid.UUID) { o.WorkspaceID = id },
	}
}

// NewUnitService creates the unit vocabulary service.
func NewUnitService(db *gorm.DB) *VocabularyService[models.Unit] {
	return &VocabularyService[models.Unit]{
		db:          db,
		resource:    permissions.ResourceUnit,
		workspaceID: func(u *models.Unit) *uuid.UUID { return u.WorkspaceID },
		setOwner:    func(u *models.Unit, id *uuid.UUID) { u.WorkspaceID = id },
	}
}

// NewProcessingLevelService creates the processing level vocabulary service.
func NewProcessingLevelService(db *gorm.DB) *VocabularyService[models.ProcessingLevel] {
	return &VocabularyService[models.ProcessingLevel]{
		db:          db,
		resource:    permissions.ResourceProcessingLevel,
		workspaceID: func(p *models.ProcessingLevel) *uuid.UUID { return p.WorkspaceID },
		setOwner:    func(p *models.ProcessingLevel, id *uuid.UUID) { p.WorkspaceID = id },
	}
}

// NewResultQualifierService creates the result qualifier vocabulary service.
func NewResultQualifierService(db *gorm.DB) *VocabularyService[models.ResultQualifier] {
	return &VocabularyService[models.ResultQualifier]{
		db:          db,
		resource:    permissions.ResourceResultQualifier,
		workspaceID: func(r *models.ResultQualifier) *uuid.UUID { return r.WorkspaceID },
		setOwner:    func(r *models.ResultQualifier, id *uuid.UUID) { r.WorkspaceID = id },
	}
}

// List returns the entries visible to the principal, optionally limited
// to one workspace. System entries (nil workspace) are always included
// unless a workspace filter is given.
func (s *VocabularyService[T]) List(p permissions.Principal, workspaceID *uuid.UUID) ([]T, error) {
	query := s.db.Scopes(permissions.VisibleScope(p, s.resource))
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", *workspaceID)
	}

	var entries []T
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns one entry if the principal may view it.
func (s *VocabularyService[T]) Get(p permissions.Principal, id uuid.UUID) (*T, error) {
	var entry T
	err := s.db.Scopes(permissions.VisibleScope(p, s.resource)).
		First(&entry, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Create adds an entry. A nil workspace requests a system-wide entry,
// which only admin and staff accounts may create.
func (s *VocabularyService[T]) Create(ctx context.Context, p permissions.Principal, workspaceID *uuid.UUID, entry T) (*T, error) {
	ws, err := workspaceFor(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, s.resource); err != nil {
		return nil, err
	}

	s.setOwner(&entry, workspaceID)
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", s.resource, err)
	}
	return &entry, nil
}

// Update applies column updates to an entry. The workspace binding is
// immutable.
func (s *VocabularyService[T]) Update(ctx context.Context, p permissions.Principal, id uuid.UUID, updates map[string]interface{}) (*T, error) {
	entry, err := s.Get(p, id)
	if err != nil {
		return nil, err
	}
	ws, err := workspaceFor(s.db, s.workspaceID(entry))
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, s.resource, permissions.ActionEdit); err != nil {
		return nil, err
	}

	delete(updates, "workspace_id")
	delete(updates, "id")
	if err := s.db.WithContext(ctx).Model(entry).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update %s: %w", s.resource, err)
	}
	return entry, nil
}

// Delete removes an entry. Entries referenced by a datastream cannot be
// deleted.
func (s *VocabularyService[T]) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	entry, err := s.Get(p, id)
	if err != nil {
		return err
	}
	ws, err := workspaceFor(s.db, s.workspaceID(entry))
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, s.resource, permissions.ActionDelete); err != nil {
		return err
	}

	column, ok := datastreamRefColumns[s.resource]
	if ok {
		var count int64
		err := s.db.Model(&models.Datastream{}).
			Where(column+" = ?", id).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return &ConflictError{Message: fmt.Sprintf("%s is referenced by %d datastream(s)", s.resource, count)}
		}
	}

	if err := s.db.WithContext(ctx).Delete(entry).Error; err != nil {
		return fmt.Errorf("delete %s: %w", s.resource, err)
	}
	return nil
}

// datastreamRefColumns maps vocabulary resource types to the datastream
// column that references them. Result qualifiers annotate observations,
// not datastreams, and have no entry.
var datastreamRefColumns = map[permissions.ResourceType]string{
	permissions.ResourceSensor:           "sensor_id",
	permissions.ResourceObservedProperty: "observed_property_id",
	permissions.ResourceUnit:             "unit_id",
	permissions.ResourceProcessingLevel:  "processing_level_id",
}
