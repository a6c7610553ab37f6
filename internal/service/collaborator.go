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

// CollaboratorService manages workspace membership.
type CollaboratorService struct {
	db *gorm.DB
}

// NewCollaboratorService creates a new CollaboratorService.
func NewCollaboratorService(db *gorm.DB) *CollaboratorService {
	return &CollaboratorService{db: db}
}

// List returns the collaborators of a workspace.
func (s *CollaboratorService) List(p permissions.Principal, workspaceID uuid.UUID) ([]models.Collaborator, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireView(s.db, p, ws, permissions.ResourceCollaborator); err != nil {
		return nil, err
	}

	var collabs []models.Collaborator
	err = s.db.Preload("User").Preload("Role").
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&collabs).Error
	if err != nil {
		return nil, err
	}
	return collabs, nil
}

// Add links a user to the workspace with a role. The workspace owner
// cannot be added as a collaborator, a user holds at most one role per
// workspace, and the role must be a user role scoped to this workspace
// or system-wide.
func (s *CollaboratorService) Add(ctx context.Context, p permissions.Principal, workspaceID uuid.UUID, req CollaboratorRequest) (*models.Collaborator, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceCollaborator); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Message: "user does not exist"}
		}
		return nil, err
	}
	if user.ID == ws.OwnerID {
		return nil, &ValidationError{Message: "the workspace owner cannot be a collaborator"}
	}

	role, err := s.resolveRole(workspaceID, req.RoleID)
	if err != nil {
		return nil, err
	}
	if !role.IsUserRole {
		return nil, &ValidationError{Message: "role cannot be assigned to users"}
	}

	collab := models.Collaborator{
		UserID:      user.ID,
		WorkspaceID: workspaceID,
		RoleID:      role.ID,
	}
	if err := s.db.WithContext(ctx).Create(&collab).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ConflictError{Message: "user is already a collaborator on this workspace"}
		}
		return nil, fmt.Errorf("add collaborator: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionAddCollaborator, fmt.Sprintf("workspace:%s", workspaceID), map[string]interface{}{
		"user_id": user.ID,
		"role_id": role.ID,
	})

	collab.User = user
	collab.Role = *role
	return &collab, nil
}

// UpdateRole changes a collaborator's role.
func (s *CollaboratorService) UpdateRole(ctx context.Context, p permissions.Principal, workspaceID, userID, roleID uuid.UUID) (*models.Collaborator, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceCollaborator, permissions.ActionEdit); err != nil {
		return nil, err
	}

	var collab models.Collaborator
	err = s.db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&collab).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	role, err := s.resolveRole(workspaceID, roleID)
	if err != nil {
		return nil, err
	}
	if !role.IsUserRole {
		return nil, &ValidationError{Message: "role cannot be assigned to users"}
	}

	collab.RoleID = role.ID
	if err := s.db.WithContext(ctx).Save(&collab).Error; err != nil {
		return nil, fmt.Errorf("update collaborator: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionUpdateCollaborator, fmt.Sprintf("workspace:%s", workspaceID), map[string]interface{}{
		"user_id": userID,
		"role_id": role.ID,
	})

	collab.Role = *role
	return &collab, nil
}

// Remove drops a collaborator from the workspace.
func (s *CollaboratorService) Remove(ctx context.Context, p permissions.Principal, workspaceID, userID uuid.UUID) error {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceCollaborator, permissions.ActionDelete); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&models.Collaborator{})
	if res.Error != nil {
		return fmt.Errorf("remove collaborator: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionRemoveCollaborator, fmt.Sprintf("workspace:%s", workspaceID), map[string]interface{}{
		"user_id": userID,
	})
	return nil
}

// resolveRole loads a role and checks it is usable in the workspace:
// either scoped to it or a system role.
func (s *CollaboratorService) resolveRole(workspaceID, roleID uuid.UUID) (*models.Role, error) {
	var role models.Role
	if err := s.db.First(&role, "id = ?", roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Message: "role does not exist"}
		}
		return nil, err
	}
	if role.WorkspaceID != nil && *role.WorkspaceID != workspaceID {
		return nil, &ValidationError{Message: "role belongs to a different workspace"}
	}
	return &role, nil
}
