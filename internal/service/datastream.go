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

// DatastreamService manages time-series metadata.
type DatastreamService struct {
	db *gorm.DB
}

// NewDatastreamService creates a new DatastreamService.
func NewDatastreamService(db *gorm.DB) *DatastreamService {
	return &DatastreamService{db: db}
}

// List returns the datastreams visible to the principal, optionally
// limited to one workspace or thing.
func (s *DatastreamService) List(p permissions.Principal, workspaceID, thingID *uuid.UUID) ([]models.Datastream, error) {
	query := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceDatastream)).
		Order("name ASC")
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", *workspaceID)
	}
	if thingID != nil {
		query = query.Where("thing_id = ?", *thingID)
	}

	var streams []models.Datastream
	if err := query.Find(&streams).Error; err != nil {
		return nil, err
	}
	return streams, nil
}

// Get returns one datastream if the principal may view it.
func (s *DatastreamService) Get(p permissions.Principal, id uuid.UUID) (*models.Datastream, error) {
	var stream models.Datastream
	err := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceDatastream)).
		First(&stream, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stream, nil
}

// Create adds a datastream under a thing. The thing must live in the same
// workspace.
func (s *DatastreamService) Create(ctx context.Context, p permissions.Principal, workspaceID uuid.UUID, stream models.Datastream) (*models.Datastream, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceDatastream); err != nil {
		return nil, err
	}
	if stream.Name == "" {
		return nil, &ValidationError{Message: "datastream name is required"}
	}

	var thing models.Thing
	if err := s.db.First(&thing, "id = ?", stream.ThingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Message: "thing does not exist"}
		}
		return nil, err
	}
	if thing.WorkspaceID == nil || *thing.WorkspaceID != workspaceID {
		return nil, &ValidationError{Message: "thing belongs to a different workspace"}
	}
	if err := s.checkReferences(&stream); err != nil {
		return nil, err
	}

	stream.ID = uuid.Nil
	stream.WorkspaceID = &workspaceID
	stream.ValueCount = 0
	stream.PhenomenonBeginTime = nil
	stream.PhenomenonEndTime = nil
	if err := s.db.WithContext(ctx).Create(&stream).Error; err != nil {
		return nil, fmt.Errorf("create datastream: %w", err)
	}
	return &stream, nil
}

// Update changes a datastream's metadata. Rollup fields are owned by
// observation loads and cannot be set here.
func (s *DatastreamService) Update(ctx context.Context, p permissions.Principal, id uuid.UUID, updates models.Datastream) (*models.Datastream, error) {
	stream, err := s.Get(p, id)
	if err != nil {
		return nil, err
	}
	ws, err := workspaceFor(s.db, stream.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceDatastream, permissions.ActionEdit); err != nil {
		return nil, err
	}
	if err := s.checkReferences(&updates); err != nil {
		return nil, err
	}

	stream.Name = updates.Name
	stream.Description = updates.Description
	stream.IsPrivate = updates.IsPrivate
	stream.SensorID = updates.SensorID
	stream.ObservedPropertyID = updates.ObservedPropertyID
	stream.UnitID = updates.UnitID
	stream.ProcessingLevelID = updates.ProcessingLevelID
	if err := s.db.WithContext(ctx).Save(stream).Error; err != nil {
		return nil, fmt.Errorf("update datastream: %w", err)
	}
	return stream, nil
}

// Delete removes a datastream and its observations.
func (s *DatastreamService) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	stream, err := s.Get(p, id)
	if err != nil {
		return err
	}
	ws, err := workspaceFor(s.db, stream.WorkspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceDatastream, permissions.ActionDelete); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("datastream_id = ?", stream.ID).Delete(&models.Observation{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(stream).Error
	})
}

// checkReferences validates the vocabulary foreign keys.
func (s *DatastreamService) checkReferences(stream *models.Datastream) error {
	refs := []struct {
		name  string
		id    uuid.UUID
		model interface{}
	}{
		{"sensor", stream.SensorID, &models.Sensor{}},
		{"observed property", stream.ObservedPropertyID, &models.ObservedProperty{}},
		{"unit", stream.UnitID, &models.Unit{}},
		{"processing level", stream.ProcessingLevelID, &models.ProcessingLevel{}},
	}
	for _, ref := range refs {
		if ref.id == uuid.Nil {
			return &ValidationError{Message: fmt.Sprintf("%s is required", ref.name)}
		}
		var count int64
		if err := s.db.Model(ref.model).Where("id = ?", ref.id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return &ValidationError{Message: fmt.Sprintf("%s does not exist", ref.name)}
		}
	}
	return nil
}
