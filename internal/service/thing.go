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

// ThingService manages monitored sites.
type ThingService struct {
	db *gorm.DB
}

// NewThingService creates a new ThingService.
func NewThingService(db *gorm.DB) *ThingService {
	return &ThingService{db: db}
}

// List returns the things visible to the principal, optionally limited to
// one workspace.
func (s *ThingService) List(p permissions.Principal, workspaceID *uuid.UUID) ([]models.Thing, error) {
	query := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceThing)).
		Order("name ASC")
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", *workspaceID)
	}

	var things []models.Thing
	if err := query.Find(&things).Error; err != nil {
		return nil, err
	}
	return things, nil
}

// Get returns one thing if the principal may view it.
func (s *ThingService) Get(p permissions.Principal, id uuid.UUID) (*models.Thing, error) {
	var thing models.Thing
	err := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceThing)).
		First(&thing, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &thing, nil
}

// Create adds a thing to a workspace.
func (s *ThingService) Create(ctx context.Context, p permissions.Principal, workspaceID uuid.UUID, thing models.Thing) (*models.Thing, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceThing); err != nil {
		return nil, err
	}
	if thing.Name == "" {
		return nil, &ValidationError{Message: "thing name is required"}
	}
	if thing.Latitude < -90 || thing.Latitude > 90 {
		return nil, &ValidationError{Message: "latitude must be between -90 and 90"}
	}
	if thing.Longitude < -180 || thing.Longitude > 180 {
		return nil, &ValidationError{Message: "longitude must be between -180 and 180"}
	}

	thing.ID = uuid.Nil
	thing.WorkspaceID = &workspaceID
	if err := s.db.WithContext(ctx).Create(&thing).Error; err != nil {
		return nil, fmt.Errorf("create thing: %w", err)
	}
	return &thing, nil
}

// Update changes a thing's attributes.
func (s *ThingService) Update(ctx context.Context, p permissions.Principal, id uuid.UUID, updates models.Thing) (*models.Thing, error) {
	thing, err := s.Get(p, id)
	if err != nil {
		return nil, err
	}
	ws, err := workspaceFor(s.db, thing.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceThing, permissions.ActionEdit); err != nil {
		return nil, err
	}

	thing.Name = updates.Name
	thing.Description = updates.Description
	thing.Latitude = updates.Latitude
	thing.Longitude = updates.Longitude
	thing.Elevation = updates.Elevation
	thing.IsPrivate = updates.IsPrivate
	if err := s.db.WithContext(ctx).Save(thing).Error; err != nil {
		return nil, fmt.Errorf("update thing: %w", err)
	}
	return thing, nil
}

// Delete removes a thing along with its datastreams and their
// observations.
func (s *ThingService) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	thing, err := s.Get(p, id)
	if err != nil {
		return err
	}
	ws, err := workspaceFor(s.db, thing.WorkspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceThing, permissions.ActionDelete); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("datastream_id IN (SELECT id FROM datastreams WHERE thing_id = ?)", thing.ID).
			Delete(&models.Observation{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("thing_id = ?", thing.ID).Delete(&models.Datastream{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(thing).Error
	})
}
