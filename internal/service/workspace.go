package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/audit"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"gorm.io/gorm"
)

// WorkspaceService contains the business logic for workspace operations.
type WorkspaceService struct {
	db *gorm.DB
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(db *gorm.DB) *WorkspaceService {
	return &WorkspaceService{db: db}
}

// List returns the workspaces visible to the principal: public ones, plus
// any the principal owns, collaborates on, or holds an API key for.
func (s *WorkspaceService) List(p permissions.Principal) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	query := s.db.Preload("Owner").Order("created_at DESC")

	switch v := p.(type) {
	case permissions.UserPrincipal:
		if !v.Elevated() {
			cond := s.db.Session(&gorm.Session{NewDB: true}).
				Where("is_private = ?", false).
				Or("owner_id = ?", v.User.ID).
				Or("id IN (SELECT workspace_id FROM collaborators WHERE user_id = ?)", v.User.ID)
			query = query.Where(cond)
		}
	case permissions.APIKeyPrincipal:
		cond := s.db.Session(&gorm.Session{NewDB: true}).
			Where("is_private = ?", false).
			Or("id = ?", v.Key.WorkspaceID)
		query = query.Where(cond)
	default:
		query = query.Where("is_private = ?", false)
	}

	if err := query.Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Get returns a single workspace if the principal may view it.
func (s *WorkspaceService) Get(p permissions.Principal, id uuid.UUID) (*models.Workspace, error) {
	ws, err := getWorkspace(s.db.Preload("Owner"), id)
	if err != nil {
		return nil, err
	}
	if err := requireView(s.db, p, ws, permissions.ResourceWorkspace); err != nil {
		return nil, err
	}
	return ws, nil
}

// Create makes the principal the owner of a new workspace. Limited-tier
// accounts may not create workspaces; (owner, name) must be unique.
func (s *WorkspaceService) Create(ctx context.Context, p permissions.Principal, req CreateWorkspaceRequest) (*models.Workspace, error) {
	u, ok := p.(permissions.UserPrincipal)
	if !ok {
		return nil, ErrNotFound
	}
	if u.User.AccountType == models.AccountLimited {
		return nil, &ForbiddenError{Message: "limited accounts cannot create workspaces"}
	}
	if req.Name == "" {
		return nil, &ValidationError{Message: "workspace name is required"}
	}

	ws := models.Workspace{
		Name:      req.Name,
		OwnerID:   u.User.ID,
		IsPrivate: req.IsPrivate,
	}
	if err := s.db.WithContext(ctx).Create(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Message: fmt.Sprintf("you already have a workspace named %q", req.Name)}
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	audit.LogAction(s.db, u.User.ID, audit.ActionCreateWorkspace, fmt.Sprintf("workspace:%s", ws.ID), map[string]interface{}{
		"name":       ws.Name,
		"is_private": ws.IsPrivate,
	})

	return &ws, nil
}

// Update changes a workspace's name or privacy flag.
func (s *WorkspaceService) Update(ctx context.Context, p permissions.Principal, id uuid.UUID, req UpdateWorkspaceRequest) (*models.Workspace, error) {
	ws, err := getWorkspace(s.db, id)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceWorkspace, permissions.ActionEdit); err != nil {
		return nil, err
	}

	if req.Name != nil {
		ws.Name = *req.Name
	}
	if req.IsPrivate != nil {
		ws.IsPrivate = *req.IsPrivate
	}
	if err := s.db.WithContext(ctx).Save(ws).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Message: fmt.Sprintf("you already have a workspace named %q", ws.Name)}
		}
		return nil, fmt.Errorf("update workspace: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionUpdateWorkspace, fmt.Sprintf("workspace:%s", ws.ID), nil)
	return ws, nil
}

// Delete removes the workspace and everything it owns, child rows first.
// Domain objects go before the workspace row because deletion order
// matters; the database is not asked to cascade.
func (s *WorkspaceService) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	ws, err := getWorkspace(s.db, id)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceWorkspace, permissions.ActionDelete); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteWorkspaceContents(tx, ws.ID)
	})
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionDeleteWorkspace, fmt.Sprintf("workspace:%s", ws.ID), map[string]interface{}{
		"name": ws.Name,
	})
	return nil
}
