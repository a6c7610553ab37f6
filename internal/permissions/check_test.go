package permissions

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.Role{},
		&models.RolePermission{},
		&models.Collaborator{},
		&models.APIKey{},
		&models.Thing{},
		&models.Datastream{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string, accountType models.AccountType) *models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        username + "@test.com",
		PasswordHash: "x",
		AccountType:  accountType,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func createWorkspace(t *testing.T, db *gorm.DB, owner *models.User, name string, private bool) *models.Workspace {
	t.Helper()
	ws := models.Workspace{Name: name, OwnerID: owner.ID, IsPrivate: private}
	if err := db.Create(&ws).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return &ws
}

func createRole(t *testing.T, db *gorm.DB, wsID *uuid.UUID, name string, grants ...models.RolePermission) *models.Role {
	t.Helper()
	role := models.Role{Name: name, WorkspaceID: wsID, IsUserRole: true, IsAPIKeyRole: true}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	for _, g := range grants {
		g.RoleID = role.ID
		if err := db.Create(&g).Error; err != nil {
			t.Fatalf("create grant: %v", err)
		}
	}
	return &role
}

func addCollaborator(t *testing.T, db *gorm.DB, user *models.User, ws *models.Workspace, role *models.Role) {
	t.Helper()
	c := models.Collaborator{UserID: user.ID, WorkspaceID: ws.ID, RoleID: role.ID}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("add collaborator: %v", err)
	}
}

func createKey(t *testing.T, db *gorm.DB, ws *models.Workspace, role *models.Role) *models.APIKey {
	t.Helper()
	key := models.APIKey{Name: "key", WorkspaceID: ws.ID, RoleID: role.ID, KeyHash: uuid.NewString()}
	if err := db.Create(&key).Error; err != nil {
		t.Fatalf("create api key: %v", err)
	}
	return &key
}

func wantActions(t *testing.T, got ActionSet, want ...Action) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d actions %v, got %v", len(want), want, got.Slice())
	}
	for _, a := range want {
		if !got.Has(a) {
			t.Errorf("expected action %q in %v", a, got.Slice())
		}
	}
}

func TestCheckObject_OwnerGetsFullSet(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", true)

	actions, err := CheckObject(db, UserPrincipal{User: owner}, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView, ActionEdit, ActionDelete)
}

func TestCheckObject_ElevatedGetsFullSet(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	staff := createUser(t, db, "staff", models.AccountStaff)
	ws := createWorkspace(t, db, owner, "ws", true)

	actions, err := CheckObject(db, UserPrincipal{User: staff}, ws, ResourceTask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView, ActionEdit, ActionDelete)
}

func TestCheckObject_StrangerOnPrivateWorkspace(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	bob := createUser(t, db, "bob", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", true)

	actions, err := CheckObject(db, UserPrincipal{User: bob}, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions)
}

func TestCheckObject_PublicWorkspaceImplicitView(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", false)

	// Anonymous callers read public workspace resources.
	actions, err := CheckObject(db, nil, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView)
}

func TestCheckObject_PublicWorkspaceRestrictedResource(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", false)

	for _, rt := range []ResourceType{ResourceAPIKey, ResourceTask, ResourceDataConnection, ResourceOrchestrationSystem} {
		actions, err := CheckObject(db, nil, ws, rt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if actions.Has(ActionView) {
			t.Errorf("anonymous caller should not view %s in a public workspace", rt)
		}
	}
}

func TestCheckObject_CollaboratorViewGrant(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	bob := createUser(t, db, "bob", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", true)
	viewer := createRole(t, db, nil, "viewer",
		models.RolePermission{PermissionType: "view", ResourceType: "*"})
	addCollaborator(t, db, bob, ws, viewer)

	actions, err := CheckObject(db, UserPrincipal{User: bob}, ws, ResourceDatastream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView)

	ok, err := CheckCreate(db, UserPrincipal{User: bob}, ws, ResourceDatastream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("viewer role should not grant create")
	}
}

func TestCheckObject_CollaboratorWildcardGrant(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	bob := createUser(t, db, "bob", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", true)
	editor := createRole(t, db, nil, "editor",
		models.RolePermission{PermissionType: "*", ResourceType: "*"})
	addCollaborator(t, db, bob, ws, editor)

	actions, err := CheckObject(db, UserPrincipal{User: bob}, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView, ActionEdit, ActionDelete)

	ok, err := CheckCreate(db, UserPrincipal{User: bob}, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("wildcard role should grant create")
	}
}

func TestCheckObject_GrantScopedToResourceType(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	bob := createUser(t, db, "bob", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", true)
	loader := createRole(t, db, nil, "loader",
		models.RolePermission{PermissionType: "view", ResourceType: "Datastream"},
		models.RolePermission{PermissionType: "edit", ResourceType: "Observation"})
	addCollaborator(t, db, bob, ws, loader)

	actions, err := CheckObject(db, UserPrincipal{User: bob}, ws, ResourceDatastream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView)

	actions, err = CheckObject(db, UserPrincipal{User: bob}, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions)
}

func TestCheckObject_APIKeyScopedToOwnWorkspace(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	home := createWorkspace(t, db, owner, "home", true)
	other := createWorkspace(t, db, owner, "other", true)
	editor := createRole(t, db, nil, "editor",
		models.RolePermission{PermissionType: "*", ResourceType: "*"})
	key := createKey(t, db, home, editor)

	actions, err := CheckObject(db, APIKeyPrincipal{Key: key}, home, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView, ActionEdit, ActionDelete)

	actions, err = CheckObject(db, APIKeyPrincipal{Key: key}, other, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions)
}

func TestCheckObject_NilWorkspace(t *testing.T) {
	db := setupTestDB(t)
	staff := createUser(t, db, "staff", models.AccountStaff)
	standard := createUser(t, db, "bob", models.AccountStandard)

	// System-wide rows are readable by everyone.
	actions, err := CheckObject(db, nil, nil, ResourceUnit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView)

	actions, err = CheckObject(db, UserPrincipal{User: standard}, nil, ResourceUnit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView)

	actions, err = CheckObject(db, UserPrincipal{User: staff}, nil, ResourceUnit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantActions(t, actions, ActionView, ActionEdit, ActionDelete)
}

func TestCheckCreate_NilWorkspace(t *testing.T) {
	db := setupTestDB(t)
	staff := createUser(t, db, "staff", models.AccountStaff)
	standard := createUser(t, db, "bob", models.AccountStandard)

	ok, err := CheckCreate(db, UserPrincipal{User: staff}, nil, ResourceUnit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("staff should create system vocabulary entries")
	}

	// Things always belong to a workspace.
	ok, err = CheckCreate(db, UserPrincipal{User: staff}, nil, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("things should not be creatable without a workspace")
	}

	ok, err = CheckCreate(db, UserPrincipal{User: standard}, nil, ResourceUnit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("standard users should not create system vocabulary entries")
	}
}

func TestCheckCreate_Anonymous(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, "alice", models.AccountStandard)
	ws := createWorkspace(t, db, owner, "ws", false)

	ok, err := CheckCreate(db, nil, ws, ResourceThing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("anonymous callers should never create")
	}
}
