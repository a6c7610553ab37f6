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

// RoleService manages workspace roles and their permission grants.
type RoleService struct {
	db *gorm.DB
}

// NewRoleService creates a new RoleService.
func NewRoleService(db *gorm.DB) *RoleService {
	return &RoleService{db: db}
}

// List returns the roles usable in a workspace: its own roles plus
// system roles.
func (s *RoleService) List(p permissions.Principal, workspaceID uuid.UUID) ([]models.Role, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireView(s.db, p, ws, permissions.ResourceRole); err != nil {
		return nil, err
	}

	var roles []models.Role
	err = s.db.Preload("Permissions").
		Where("workspace_id = ? OR workspace_id IS NULL", workspaceID).
		Order("name ASC").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// Get returns one role with its grants.
func (s *RoleService) Get(p permissions.Principal, workspaceID, roleID uuid.UUID) (*models.Role, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireView(s.db, p, ws, permissions.ResourceRole); err != nil {
		return nil, err
	}
	return s.findRole(workspaceID, roleID)
}

// Create makes a new workspace-scoped role.
func (s *RoleService) Create(ctx context.Context, p permissions.Principal, workspaceID uuid.UUID, req RoleRequest) (*models.Role, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceRole); err != nil {
		return nil, err
	}
	if err := validateRoleRequest(req); err != nil {
		return nil, err
	}

	role := models.Role{
		Name:         req.Name,
		Description:  req.Description,
		WorkspaceID:  &workspaceID,
		IsUserRole:   req.IsUserRole,
		IsAPIKeyRole: req.IsAPIKeyRole,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		return replaceGrants(tx, role.ID, req.Permissions)
	})
	if err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionCreateRole, fmt.Sprintf("role:%s", role.ID), map[string]interface{}{
		"name":         role.Name,
		"workspace_id": workspaceID,
	})

	return s.findRole(workspaceID, role.ID)
}

// Update changes a role's metadata and replaces its grants.
func (s *RoleService) Update(ctx context.Context, p permissions.Principal, workspaceID, roleID uuid.UUID, req RoleRequest) (*models.Role, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceRole, permissions.ActionEdit); err != nil {
		return nil, err
	}
	role, err := s.findRole(workspaceID, roleID)
	if err != nil {
		return nil, err
	}
	if role.WorkspaceID == nil {
		return nil, &ForbiddenError{Message: "system roles cannot be modified"}
	}
	if err := validateRoleRequest(req); err != nil {
		return nil, err
	}

	role.Name = req.Name
	role.Description = req.Description
	role.IsUserRole = req.IsUserRole
	role.IsAPIKeyRole = req.IsAPIKeyRole
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(role).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		return replaceGrants(tx, role.ID, req.Permissions)
	})
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionUpdateRole, fmt.Sprintf("role:%s", role.ID), nil)
	return s.findRole(workspaceID, role.ID)
}

// Delete removes a role along with its grants and everything assigned to
// it. Collaborators holding the role lose their membership and API keys
// bound to it are revoked, in the same transaction.
func (s *RoleService) Delete(ctx context.Context, p permissions.Principal, workspaceID, roleID uuid.UUID) error {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceRole, permissions.ActionDelete); err != nil {
		return err
	}
	role, err := s.findRole(workspaceID, roleID)
	if err != nil {
		return err
	}
	if role.WorkspaceID == nil {
		return &ForbiddenError{Message: "system roles cannot be deleted"}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.Collaborator{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", role.ID).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Role{}, "id = ?", role.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionDeleteRole, fmt.Sprintf("role:%s", role.ID), map[string]interface{}{
		"name": role.Name,
	})
	return nil
}

func (s *RoleService) findRole(workspaceID, roleID uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := s.db.Preload("Permissions").
		Where("id = ? AND (workspace_id = ? OR workspace_id IS NULL)", roleID, workspaceID).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func validateRoleRequest(req RoleRequest) error {
	if req.Name == "" {
		return &ValidationError{Message: "role name is required"}
	}
	if !req.IsUserRole && !req.IsAPIKeyRole {
		return &ValidationError{Message: "role must be usable by users, API keys, or both"}
	}
	for _, g := range req.Permissions {
		if g.PermissionType == "" || g.ResourceType == "" {
			return &ValidationError{Message: "permission grants need both a permission type and a resource type"}
		}
		switch g.PermissionType {
		case permissions.Wildcard,
			string(permissions.ActionView), string(permissions.ActionCreate),
			string(permissions.ActionEdit), string(permissions.ActionDelete):
		default:
			return &ValidationError{Message: fmt.Sprintf("unknown permission type %q", g.PermissionType)}
		}
	}
	return nil
}

func replaceGrants(tx *gorm.DB, roleID uuid.UUID, grants []RolePermissionRequest) error {
	for _, g := range grants {
		rp := models.RolePermission{
			RoleID:         roleID,
			PermissionType: g.PermissionType,
			ResourceType:   g.ResourceType,
		}
		if err := tx.Create(&rp).Error; err != nil {
			return err
		}
	}
	return nil
}
