package permissions

import (
	"gorm.io/gorm"
)

// VisibleScope returns a GORM scope restricting a query over rows of
// resourceType to those the principal may view. It is a single SQL
// predicate so it composes with pagination and ordering; the per-object
// CheckObject answer for view matches what this scope admits.
//
// A row is visible when any of: it is public (unowned, or in a public
// workspace, and for things and datastreams not entity-private); the
// principal owns the workspace; the principal is admin or staff; or the
// principal's role in that workspace grants view (or the wildcard) for the
// resource type.
func VisibleScope(p Principal, resourceType ResourceType) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		pubCond, pubArgs := publicCond(resourceType)

		switch v := p.(type) {
		case UserPrincipal:
			if v.Elevated() {
				return tx
			}
			cond := tx.Session(&gorm.Session{NewDB: true}).
				Where(pubCond, pubArgs...).
				Or(
					"workspace_id IN (SELECT id FROM workspaces WHERE owner_id = ? AND deleted_at IS NULL)",
					v.User.ID,
				).
				Or(
					`workspace_id IN (
						SELECT c.workspace_id FROM collaborators c
						JOIN role_permissions rp ON rp.role_id = c.role_id
						WHERE c.user_id = ? AND rp.resource_type IN ? AND rp.permission_type IN ?)`,
					v.User.ID, grantMatch(resourceType), viewGrants(),
				)
			return tx.Where(cond)
		case APIKeyPrincipal:
			cond := tx.Session(&gorm.Session{NewDB: true}).
				Where(pubCond, pubArgs...).
				Or(
					`workspace_id IN (
						SELECT ak.workspace_id FROM api_keys ak
						JOIN role_permissions rp ON rp.role_id = ak.role_id
						WHERE ak.id = ? AND rp.resource_type IN ? AND rp.permission_type IN ?)`,
					v.Key.ID, grantMatch(resourceType), viewGrants(),
				)
			return tx.Where(cond)
		default:
			return tx.Where(pubCond, pubArgs...)
		}
	}
}

// publicCond is the public-access arm of the visibility predicate. Rows
// with a nil workspace are system-wide and always readable. Rows in a
// workspace require the workspace to be public, and for types carrying
// their own privacy flag the row itself must not be private either.
// Restricted resource types get no implicit access from a public
// workspace, only from a nil one.
func publicCond(rt ResourceType) (string, []any) {
	if restrictedResources[rt] {
		return "workspace_id IS NULL", nil
	}
	cond := "(workspace_id IS NULL OR workspace_id IN (SELECT id FROM workspaces WHERE is_private = ? AND deleted_at IS NULL))"
	args := []any{false}
	if entityPrivacyFlag(rt) {
		cond = "(is_private = ? AND " + cond + ")"
		args = []any{false, false}
	}
	return cond, args
}

func grantMatch(rt ResourceType) []string {
	return []string{Wildcard, string(rt)}
}

func viewGrants() []string {
	return []string{Wildcard, string(ActionView)}
}
