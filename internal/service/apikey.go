package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/audit"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"gorm.io/gorm"
)

// APIKeyService manages workspace API keys. Secrets are 32 random bytes,
// stored as a SHA-256 digest and returned to the caller exactly once.
type APIKeyService struct {
	db *gorm.DB
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(db *gorm.DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// List returns the API keys of a workspace. Hashes are never exposed.
func (s *APIKeyService) List(p permissions.Principal, workspaceID uuid.UUID) ([]models.APIKey, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireView(s.db, p, ws, permissions.ResourceAPIKey); err != nil {
		return nil, err
	}

	var keys []models.APIKey
	err = s.db.Preload("Role").
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Create issues a new API key bound to an API-key-enabled role of the
// workspace. The raw secret appears only in the returned result.
func (s *APIKeyService) Create(ctx context.Context, p permissions.Principal, workspaceID uuid.UUID, req APIKeyRequest) (*APIKeyResult, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceAPIKey); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, &ValidationError{Message: "API key name is required"}
	}
	role, err := s.resolveKeyRole(workspaceID, req.RoleID)
	if err != nil {
		return nil, err
	}

	secret, hash, err := newSecret()
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}

	key := models.APIKey{
		Name:        req.Name,
		WorkspaceID: workspaceID,
		RoleID:      role.ID,
		KeyHash:     hash,
	}
	if err := s.db.WithContext(ctx).Create(&key).Error; err != nil {
		return nil, fmt.Errorf("create API key: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionCreateAPIKey, fmt.Sprintf("api_key:%s", key.ID), map[string]interface{}{
		"name":         key.Name,
		"workspace_id": workspaceID,
	})

	key.Role = *role
	return &APIKeyResult{Key: &key, Secret: secret}, nil
}

// Regenerate replaces the key's secret, invalidating the old one
// immediately.
func (s *APIKeyService) Regenerate(ctx context.Context, p permissions.Principal, workspaceID, keyID uuid.UUID) (*APIKeyResult, error) {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceAPIKey, permissions.ActionEdit); err != nil {
		return nil, err
	}
	key, err := s.findKey(workspaceID, keyID)
	if err != nil {
		return nil, err
	}

	secret, hash, err := newSecret()
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}
	key.KeyHash = hash
	key.LastUsedAt = nil
	if err := s.db.WithContext(ctx).Save(key).Error; err != nil {
		return nil, fmt.Errorf("regenerate API key: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionRegenerateAPIKey, fmt.Sprintf("api_key:%s", key.ID), nil)
	return &APIKeyResult{Key: key, Secret: secret}, nil
}

// Delete revokes an API key.
func (s *APIKeyService) Delete(ctx context.Context, p permissions.Principal, workspaceID, keyID uuid.UUID) error {
	ws, err := getWorkspace(s.db, workspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceAPIKey, permissions.ActionDelete); err != nil {
		return err
	}
	key, err := s.findKey(workspaceID, keyID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(key).Error; err != nil {
		return fmt.Errorf("delete API key: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionDeleteAPIKey, fmt.Sprintf("api_key:%s", key.ID), map[string]interface{}{
		"name": key.Name,
	})
	return nil
}

// Authenticate resolves a raw secret to its API key, or ErrNotFound.
// Used by the auth middleware.
func (s *APIKeyService) Authenticate(raw string) (*models.APIKey, error) {
	digest := sha256.Sum256([]byte(raw))
	var key models.APIKey
	err := s.db.Preload("Role.Permissions").
		Where("key_hash = ?", hex.EncodeToString(digest[:])).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (s *APIKeyService) findKey(workspaceID, keyID uuid.UUID) (*models.APIKey, error) {
	var key models.APIKey
	err := s.db.Where("id = ? AND workspace_id = ?", keyID, workspaceID).First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (s *APIKeyService) resolveKeyRole(workspaceID, roleID uuid.UUID) (*models.Role, error) {
	var role models.Role
	err := s.db.Where("id = ? AND (workspace_id = ? OR workspace_id IS NULL)", roleID, workspaceID).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Message: "role does not exist"}
		}
		return nil, err
	}
	if !role.IsAPIKeyRole {
		return nil, &ValidationError{Message: "role cannot be assigned to API keys"}
	}
	return &role, nil
}

// newSecret returns a fresh secret and its stored hash. The hs_ prefix
// makes leaked keys recognizable in scanner tooling.
func newSecret() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = "hs_" + hex.EncodeToString(buf)
	digest := sha256.Sum256([]byte(raw))
	return raw, hex.EncodeToString(digest[:]), nil
}
