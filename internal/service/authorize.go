package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"gorm.io/gorm"
)

// Authorization helpers shared by all services. The permission engine
// returns action sets; these translate its answers into the service error
// taxonomy: a principal who cannot view a resource sees ErrNotFound, one
// who can view but not act sees ForbiddenError.

// requireAction checks that the principal holds the given action on the
// resource type in the workspace.
func requireAction(db *gorm.DB, p permissions.Principal, ws *models.Workspace, rt permissions.ResourceType, action permissions.Action) error {
	actions, err := permissions.CheckObject(db, p, ws, rt)
	if err != nil {
		return err
	}
	if !actions.Has(permissions.ActionView) {
		return ErrNotFound
	}
	if !actions.Has(action) {
		return &ForbiddenError{Message: fmt.Sprintf("you do not have permission to %s this %s", action, rt)}
	}
	return nil
}

// requireView checks view access only.
func requireView(db *gorm.DB, p permissions.Principal, ws *models.Workspace, rt permissions.ResourceType) error {
	return requireAction(db, p, ws, rt, permissions.ActionView)
}

// requireCreate checks create access. A principal who cannot even view
// the workspace's resources of this type gets ErrNotFound rather than a
// create denial.
func requireCreate(db *gorm.DB, p permissions.Principal, ws *models.Workspace, rt permissions.ResourceType) error {
	ok, err := permissions.CheckCreate(db, p, ws, rt)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	actions, err := permissions.CheckObject(db, p, ws, rt)
	if err != nil {
		return err
	}
	if !actions.Has(permissions.ActionView) {
		return ErrNotFound
	}
	return &ForbiddenError{Message: fmt.Sprintf("you do not have permission to create a %s", rt)}
}

// getWorkspace loads a workspace by ID, mapping a missing row to
// ErrNotFound.
func getWorkspace(db *gorm.DB, id uuid.UUID) (*models.Workspace, error) {
	var ws models.Workspace
	if err := db.First(&ws, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// workspaceFor resolves an optional workspace reference on a resource.
func workspaceFor(db *gorm.DB, id *uuid.UUID) (*models.Workspace, error) {
	if id == nil {
		return nil, nil
	}
	return getWorkspace(db, *id)
}
