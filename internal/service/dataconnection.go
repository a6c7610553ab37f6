package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/audit"
	"github.com/hydroserve/hydroserve/internal/crypto"
	"github.com/hydroserve/hydroserve/internal/etl"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"gorm.io/gorm"
)

// DataConnectionService manages external-source configurations.
// Credential-bearing settings values are encrypted before they reach the
// database; the runner decrypts them at execution time.
type DataConnectionService struct {
	db       *gorm.DB
	fieldKey []byte
}

// NewDataConnectionService creates a new DataConnectionService. fieldKey
// encrypts credential settings; nil stores them as given.
func NewDataConnectionService(db *gorm.DB, fieldKey []byte) *DataConnectionService {
	return &DataConnectionService{db: db, fieldKey: fieldKey}
}

// List returns the connections visible to the principal, optionally
// limited to one workspace. Connections are a restricted resource: public
// workspaces grant no implicit access.
func (s *DataConnectionService) List(p permissions.Principal, workspaceID *uuid.UUID) ([]models.DataConnection, error) {
	query := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceDataConnection)).
		Order("name ASC")
	if workspaceID != nil {
		query = query.Where("workspace_id = ?", *workspaceID)
	}

	var conns []models.DataConnection
	if err := query.Find(&conns).Error; err != nil {
		return nil, err
	}
	for i := range conns {
		redactSettings(&conns[i])
	}
	return conns, nil
}

// Get returns one connection with credentials redacted.
func (s *DataConnectionService) Get(p permissions.Principal, id uuid.UUID) (*models.DataConnection, error) {
	conn, err := s.find(p, id)
	if err != nil {
		return nil, err
	}
	redactSettings(conn)
	return conn, nil
}

// Create adds a connection. The extractor, transformer and loader types
// must all be registered implementations.
func (s *DataConnectionService) Create(ctx context.Context, p permissions.Principal, workspaceID *uuid.UUID, conn models.DataConnection) (*models.DataConnection, error) {
	ws, err := workspaceFor(s.db, workspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireCreate(s.db, p, ws, permissions.ResourceDataConnection); err != nil {
		return nil, err
	}
	if err := validateConnection(&conn); err != nil {
		return nil, err
	}

	conn.ID = uuid.Nil
	conn.WorkspaceID = workspaceID
	if err := s.encryptSettings(&conn); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&conn).Error; err != nil {
		return nil, fmt.Errorf("create data connection: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionCreateDataConnection, fmt.Sprintf("data_connection:%s", conn.ID), map[string]interface{}{
		"name": conn.Name,
	})

	redactSettings(&conn)
	return &conn, nil
}

// Update replaces a connection's configuration.
func (s *DataConnectionService) Update(ctx context.Context, p permissions.Principal, id uuid.UUID, updates models.DataConnection) (*models.DataConnection, error) {
	conn, err := s.find(p, id)
	if err != nil {
		return nil, err
	}
	ws, err := workspaceFor(s.db, conn.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceDataConnection, permissions.ActionEdit); err != nil {
		return nil, err
	}
	if err := validateConnection(&updates); err != nil {
		return nil, err
	}

	conn.Name = updates.Name
	conn.ExtractorType = updates.ExtractorType
	conn.ExtractorSettings = updates.ExtractorSettings
	conn.TransformerType = updates.TransformerType
	conn.TransformerSettings = updates.TransformerSettings
	conn.LoaderType = updates.LoaderType
	conn.LoaderSettings = updates.LoaderSettings
	if err := s.encryptSettings(conn); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(conn).Error; err != nil {
		return nil, fmt.Errorf("update data connection: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionUpdateDataConnection, fmt.Sprintf("data_connection:%s", conn.ID), nil)
	redactSettings(conn)
	return conn, nil
}

// Delete removes a connection. Connections referenced by a task cannot be
// deleted.
func (s *DataConnectionService) Delete(ctx context.Context, p permissions.Principal, id uuid.UUID) error {
	conn, err := s.find(p, id)
	if err != nil {
		return err
	}
	ws, err := workspaceFor(s.db, conn.WorkspaceID)
	if err != nil {
		return err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceDataConnection, permissions.ActionDelete); err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&models.Task{}).Where("data_connection_id = ?", conn.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &ConflictError{Message: fmt.Sprintf("data connection is referenced by %d task(s)", count)}
	}

	if err := s.db.WithContext(ctx).Delete(conn).Error; err != nil {
		return fmt.Errorf("delete data connection: %w", err)
	}

	audit.LogAction(s.db, permissions.PrincipalID(p), audit.ActionDeleteDataConnection, fmt.Sprintf("data_connection:%s", conn.ID), map[string]interface{}{
		"name": conn.Name,
	})
	return nil
}

func (s *DataConnectionService) find(p permissions.Principal, id uuid.UUID) (*models.DataConnection, error) {
	var conn models.DataConnection
	err := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceDataConnection)).
		First(&conn, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conn, nil
}

func validateConnection(conn *models.DataConnection) error {
	if conn.Name == "" {
		return &ValidationError{Message: "connection name is required"}
	}
	if !etl.ExtractorRegistered(conn.ExtractorType) {
		return &ValidationError{Message: fmt.Sprintf("unknown extractor type %q", conn.ExtractorType)}
	}
	if !etl.TransformerRegistered(conn.TransformerType) {
		return &ValidationError{Message: fmt.Sprintf("unknown transformer type %q", conn.TransformerType)}
	}
	if !etl.LoaderRegistered(conn.LoaderType) {
		return &ValidationError{Message: fmt.Sprintf("unknown loader type %q", conn.LoaderType)}
	}
	return nil
}

// encryptSettings encrypts credential-bearing values in all three
// settings maps.
func (s *DataConnectionService) encryptSettings(conn *models.DataConnection) error {
	if s.fieldKey == nil {
		return nil
	}
	for _, settings := range []map[string]interface{}{
		conn.ExtractorSettings, conn.TransformerSettings, conn.LoaderSettings,
	} {
		for k, v := range settings {
			if !sensitiveSetting(k) {
				continue
			}
			raw, ok := v.(string)
			if !ok {
				continue
			}
			enc, err := crypto.EncryptField(raw, s.fieldKey)
			if err != nil {
				return fmt.Errorf("encrypt setting %q: %w", k, err)
			}
			settings[k] = enc
		}
	}
	return nil
}

// redactSettings removes credential values before a connection leaves the
// service layer.
func redactSettings(conn *models.DataConnection) {
	for _, settings := range []map[string]interface{}{
		conn.ExtractorSettings, conn.TransformerSettings, conn.LoaderSettings,
	} {
		for k := range settings {
			if sensitiveSetting(k) {
				settings[k] = "********"
			}
		}
	}
}

func sensitiveSetting(key string) bool {
	k := strings.ToLower(key)
	for _, marker := range []string{"password", "secret", "token", "api_key", "apikey", "authorization"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
