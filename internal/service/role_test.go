package service

import (
	"context"
	"testing"

	"github.com/hydroserve/hydroserve/internal/models"
)

func TestRoleCreate(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)

	role, err := svc.Create(context.Background(), asUser(alice), ws.ID, RoleRequest{
		Name:       "field-tech",
		IsUserRole: true,
		Permissions: []RolePermissionRequest{
			{PermissionType: "view", ResourceType: "*"},
			{PermissionType: "edit", ResourceType: "observation"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.WorkspaceID == nil || *role.WorkspaceID != ws.ID {
		t.Error("role should be scoped to the workspace")
	}
	if len(role.Permissions) != 2 {
		t.Errorf("expected 2 grants, got %d", len(role.Permissions))
	}
}

func TestRoleCreate_Validation(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)

	cases := []struct {
		name string
		req  RoleRequest
	}{
		{"empty name", RoleRequest{IsUserRole: true}},
		{"no audience", RoleRequest{Name: "r"}},
		{"unknown permission type", RoleRequest{
			Name:       "r",
			IsUserRole: true,
			Permissions: []RolePermissionRequest{
				{PermissionType: "administer", ResourceType: "*"},
			},
		}},
		{"grant missing resource type", RoleRequest{
			Name:       "r",
			IsUserRole: true,
			Permissions: []RolePermissionRequest{
				{PermissionType: "view"},
			},
		}},
	}
	for _, tc := range cases {
		_, err := svc.Create(context.Background(), asUser(alice), ws.ID, tc.req)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
			continue
		}
		wantValidation(t, err)
	}
}

func TestRoleUpdate_ReplacesGrants(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)

	role, err := svc.Create(context.Background(), asUser(alice), ws.ID, RoleRequest{
		Name:       "field-tech",
		IsUserRole: true,
		Permissions: []RolePermissionRequest{
			{PermissionType: "view", ResourceType: "*"},
			{PermissionType: "edit", ResourceType: "observation"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(context.Background(), asUser(alice), ws.ID, role.ID, RoleRequest{
		Name:       "field-lead",
		IsUserRole: true,
		Permissions: []RolePermissionRequest{
			{PermissionType: "*", ResourceType: "*"},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "field-lead" {
		t.Errorf("expected renamed role, got %q", updated.Name)
	}
	if len(updated.Permissions) != 1 {
		t.Errorf("grants should be replaced, not appended: %v", updated.Permissions)
	}
}

func TestRole_SystemRolesAreImmutable(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	viewer := seedSystemRole(t, db, "viewer", true, true)

	_, err := svc.Update(context.Background(), asUser(alice), ws.ID, viewer.ID, RoleRequest{Name: "x", IsUserRole: true})
	wantForbidden(t, err)

	err = svc.Delete(context.Background(), asUser(alice), ws.ID, viewer.ID)
	wantForbidden(t, err)
}

func TestRoleList_IncludesSystemRoles(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	other := seedWorkspace(t, db, alice, "other", true)
	seedSystemRole(t, db, "viewer", true, true)

	db.Create(&models.Role{Name: "mine", WorkspaceID: &ws.ID, IsUserRole: true})
	db.Create(&models.Role{Name: "theirs", WorkspaceID: &other.ID, IsUserRole: true})

	roles, err := svc.List(asUser(alice), ws.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(roles) != 2 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = r.Name
		}
		t.Errorf("expected own role plus the system role, got %v", names)
	}
}

func TestRoleCreate_KeyOnlyRolePersistsFlags(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)

	role, err := svc.Create(context.Background(), asUser(alice), ws.ID, RoleRequest{
		Name:         "machine-loader",
		IsAPIKeyRole: true,
		Permissions: []RolePermissionRequest{
			{PermissionType: "create", ResourceType: "Observation"},
		},
	})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	var got models.Role
	if err := db.First(&got, "id = ?", role.ID).Error; err != nil {
		t.Fatalf("reload role: %v", err)
	}
	if got.IsUserRole {
		t.Error("key-only role came back usable by users")
	}
	if !got.IsAPIKeyRole {
		t.Error("expected is_apikey_role persisted")
	}
}

func TestRoleDelete_CascadesAssignments(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewRoleService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	bob := seedUser(t, db, "bob", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)

	role, err := svc.Create(context.Background(), asUser(alice), ws.ID, RoleRequest{
		Name:         "field-tech",
		IsUserRole:   true,
		IsAPIKeyRole: true,
		Permissions: []RolePermissionRequest{
			{PermissionType: "view", ResourceType: "*"},
		},
	})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	seedCollaborator(t, db, bob, ws, role)
	db.Create(&models.APIKey{Name: "k", WorkspaceID: ws.ID, RoleID: role.ID, KeyHash: "h"})

	if err := svc.Delete(context.Background(), asUser(alice), ws.ID, role.ID); err != nil {
		t.Fatalf("delete role: %v", err)
	}

	var collabs, keys, grants int64
	db.Model(&models.Collaborator{}).Where("role_id = ?", role.ID).Count(&collabs)
	db.Model(&models.APIKey{}).Where("role_id = ?", role.ID).Count(&keys)
	db.Model(&models.RolePermission{}).Where("role_id = ?", role.ID).Count(&grants)
	if collabs != 0 || keys != 0 || grants != 0 {
		t.Errorf("expected assignments cascaded, got collaborators=%d keys=%d grants=%d", collabs, keys, grants)
	}

	var roleCount int64
	db.Unscoped().Model(&models.Role{}).Where("id = ?", role.ID).Count(&roleCount)
	if roleCount != 0 {
		t.Error("expected role row removed")
	}
}
