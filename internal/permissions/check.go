package permissions

import (
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// CheckObject computes the set of actions the principal holds on instances
// of resourceType in the given workspace. It never decides create; see
// CheckCreate. A nil workspace means the resource is system-wide: staff
// get the full set, everyone else gets view only.
//
// The returned error is non-nil only for query failures; an empty set is
// the ordinary "no access" answer.
func CheckObject(db *gorm.DB, p Principal, ws *models.Workspace, resourceType ResourceType) (ActionSet, error) {
	if ws == nil {
		if u, ok := p.(UserPrincipal); ok && u.Elevated() {
			return NewActionSet(ActionView, ActionEdit, ActionDelete), nil
		}
		return NewActionSet(ActionView), nil
	}

	if u, ok := p.(UserPrincipal); ok {
		if u.User.ID == ws.OwnerID || u.Elevated() {
			return NewActionSet(ActionView, ActionEdit, ActionDelete), nil
		}
	}

	grants, err := roleGrants(db, p, ws, resourceType)
	if err != nil {
		return nil, err
	}

	actions := NewActionSet()
	for _, g := range grants {
		switch g.PermissionType {
		case Wildcard:
			actions.Add(ActionView)
			actions.Add(ActionEdit)
			actions.Add(ActionDelete)
		case string(ActionCreate):
			// create is decided by CheckCreate, never part of object sets
		default:
			actions.Add(Action(g.PermissionType))
		}
	}

	// Public workspaces grant read to everyone, except for resource types
	// that must stay access-controlled.
	if !ws.IsPrivate && !restrictedResources[resourceType] {
		actions.Add(ActionView)
	}

	return actions, nil
}

// CheckCreate decides whether the principal may create a new instance of
// resourceType in the workspace. A nil workspace is allowed only for staff
// creating system vocabulary entries.
func CheckCreate(db *gorm.DB, p Principal, ws *models.Workspace, resourceType ResourceType) (bool, error) {
	if p == nil {
		return false, nil
	}

	if u, ok := p.(UserPrincipal); ok && u.Elevated() {
		if ws == nil {
			return systemCreatable[resourceType], nil
		}
		return true, nil
	}

	if ws == nil {
		return false, nil
	}

	if u, ok := p.(UserPrincipal); ok && u.User.ID == ws.OwnerID {
		return true, nil
	}

	grants, err := roleGrants(db, p, ws, resourceType)
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if g.PermissionType == Wildcard || g.PermissionType == string(ActionCreate) {
			return true, nil
		}
	}
	return false, nil
}

// roleGrants returns the permission rows the principal's role carries for
// the workspace, filtered to the resource type (or its wildcard). For a
// user the role comes from the collaborator link; for an API key from the
// role attached to the key, and only inside the key's own workspace.
func roleGrants(db *gorm.DB, p Principal, ws *models.Workspace, resourceType ResourceType) ([]models.RolePermission, error) {
	var roleID any

	switch v := p.(type) {
	case UserPrincipal:
		var collab models.Collaborator
		err := db.Where("user_id = ? AND workspace_id = ?", v.User.ID, ws.ID).First(&collab).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, nil
			}
			return nil, err
		}
		roleID = collab.RoleID
	case APIKeyPrincipal:
		if v.Key.WorkspaceID != ws.ID {
			return nil, nil
		}
		roleID = v.Key.RoleID
	default:
		return nil, nil
	}

	var grants []models.RolePermission
	err := db.
		Where("role_id = ? AND resource_type IN ?", roleID, []string{Wildcard, string(resourceType)}).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}
