package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hydroserve/hydroserve/internal/models"
)

func TestAPIKeyCreate_SecretShownOnce(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAPIKeyService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	loader := seedSystemRole(t, db, "loader", false, true,
		models.RolePermission{PermissionType: "edit", ResourceType: "observation"})

	res, err := svc.Create(context.Background(), asUser(alice), ws.ID, APIKeyRequest{Name: "gauge", RoleID: loader.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(res.Secret, "hs_") {
		t.Errorf("secret should carry the hs_ prefix, got %q", res.Secret)
	}
	if len(res.Secret) != 3+64 {
		t.Errorf("expected 32 hex-encoded random bytes, got %d chars", len(res.Secret))
	}
	if res.Key.KeyHash == res.Secret {
		t.Error("stored hash must not equal the raw secret")
	}
}

func TestAPIKeyCreate_RoleMustAllowKeys(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAPIKeyService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	userOnly := seedSystemRole(t, db, "editor", true, false,
		models.RolePermission{PermissionType: "*", ResourceType: "*"})

	_, err := svc.Create(context.Background(), asUser(alice), ws.ID, APIKeyRequest{Name: "k", RoleID: userOnly.ID})
	wantValidation(t, err)
}

func TestAPIKeyAuthenticate_RoundTrip(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAPIKeyService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	loader := seedSystemRole(t, db, "loader", false, true,
		models.RolePermission{PermissionType: "edit", ResourceType: "observation"})

	res, err := svc.Create(context.Background(), asUser(alice), ws.ID, APIKeyRequest{Name: "gauge", RoleID: loader.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	key, err := svc.Authenticate(res.Secret)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if key.ID != res.Key.ID {
		t.Errorf("resolved the wrong key")
	}
	if len(key.Role.Permissions) != 1 {
		t.Errorf("expected role grants preloaded, got %v", key.Role.Permissions)
	}

	if _, err := svc.Authenticate("hs_" + strings.Repeat("0", 64)); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown secret should be ErrNotFound, got %v", err)
	}
}

func TestAPIKeyRegenerate_InvalidatesOldSecret(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAPIKeyService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	loader := seedSystemRole(t, db, "loader", false, true)

	res, err := svc.Create(context.Background(), asUser(alice), ws.ID, APIKeyRequest{Name: "gauge", RoleID: loader.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldSecret := res.Secret

	fresh, err := svc.Regenerate(context.Background(), asUser(alice), ws.ID, res.Key.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if fresh.Secret == oldSecret {
		t.Fatal("regenerate must mint a new secret")
	}
	if fresh.Key.LastUsedAt != nil {
		t.Error("regenerate should clear last_used_at")
	}

	if _, err := svc.Authenticate(oldSecret); !errors.Is(err, ErrNotFound) {
		t.Errorf("old secret should stop working, got %v", err)
	}
	if _, err := svc.Authenticate(fresh.Secret); err != nil {
		t.Errorf("new secret should authenticate: %v", err)
	}
}

func TestAPIKeyDelete_Revokes(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAPIKeyService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	ws := seedWorkspace(t, db, alice, "ws", true)
	loader := seedSystemRole(t, db, "loader", false, true)

	res, err := svc.Create(context.Background(), asUser(alice), ws.ID, APIKeyRequest{Name: "gauge", RoleID: loader.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), asUser(alice), ws.ID, res.Key.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Authenticate(res.Secret); !errors.Is(err, ErrNotFound) {
		t.Errorf("revoked key should not authenticate, got %v", err)
	}
}

func TestAPIKeyList_HiddenOutsideWorkspace(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewAPIKeyService(db)
	alice := seedUser(t, db, "alice", models.AccountStandard)
	bob := seedUser(t, db, "bob", models.AccountStandard)
	public := seedWorkspace(t, db, alice, "public", false)

	// API keys are a restricted resource; a public workspace does not
	// expose them to outsiders or anonymous callers.
	if _, err := svc.List(nil, public.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("anonymous list should be ErrNotFound, got %v", err)
	}
	if _, err := svc.List(asUser(bob), public.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger list should be ErrNotFound, got %v", err)
	}
	if _, err := svc.List(asUser(alice), public.ID); err != nil {
		t.Errorf("owner list: %v", err)
	}
}
