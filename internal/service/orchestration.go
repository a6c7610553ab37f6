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

// OrchestrationSystemService manages the registry of external run
// triggers. Like data connections these are a restricted resource.
type OrchestrationSystemService struct {
	db *gorm.DB
}

// NewOrchestrationSystemService creates a new OrchestrationSystemService.
func NewOrchestrationSystemService(db *gorm.DB) *OrchestrationSystemService {
	return &OrchestrationSystemService{db: db}
}

// List returns the systems visible to the principal, optionally limited
// to one workspace.
func (s *OrchestrationSystemService) List(p permissions.Principal, workspaceID *uuid.UUID) ([]models.OrchestrationSystem, error) {
	query := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceOrchestrationSystem)).
		Order("name ASC")
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", *workspaceID)
	}

	var systems []models.OrchestrationSystem
	if err := query.Find(&systems).Error; err != nil {
		return nil, err
	}
	return systems, nil
}

// Get returns one system if the principal may view it.
func (s *OrchestrationSystemService) Get(p permissions.Principal, id uuid.UUID) (*models.OrchestrationSystem, error) {
	var system models.OrchestrationSystem
	err := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceOrchestrationSystem)).
		First(&system, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &system, nil
}

// Create registers a system. A nil workspace marks a staff-maintained
// system-wide entry.
func (s *OrchestrationSystemService) Create(ctx context.Context, p permissions.Principal, workspaceID *uuid.UUID, system models.OrchestrationSystem) (*models.OrchestrationSystem, error) {
	ws, err := workspaceFor(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceOrchestrationSystem); err != nil {
		return nil, err
	}
	if system.Name == "" {
		return nil, &ValidationError{Message: "orchestration system name is required"}
	}
	if system.Type == "" {
		return nil, &ValidationError{Message: "orchestration system type is required"}
	}

	system.ID = uuid.Nil
	system.WorkspaceID = workspaceID
	if err := s.db.WithContext(ctx).Create(&system).Error; err != nil {
		return nil, fmt.Errorf("create orchestration system: %w", err)
	}
	return &system, nil
}

// Delete removes a system. Systems referenced by a task cannot be
// deleted.
func (s *OrchestrationSystemService) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	system, err := s.Get(p, id)
	if err != nil {
		return err
	}
	ws, err := workspaceFor(s.db, system.WorkspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceOrchestrationSystem, permissions.ActionDelete); err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&models.Task{}).Where("orchestration_system_id = ?", system.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Message: fmt.Sprintf("orchestration system is referenced by %d task(s)", count)}
	}

	return s.db.WithContext(ctx).Delete(system).Error
}
