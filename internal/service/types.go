package service

import (
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
)

// CreateWorkspaceRequest holds parameters for creating a workspace.
type CreateWorkspaceRequest struct {
	Name      string
	IsPrivate bool
}

// UpdateWorkspaceRequest holds optional workspace updates; nil fields are
// left unchanged.
type UpdateWorkspaceRequest struct {
	Name      *string
	IsPrivate *bool
}

// CollaboratorRequest links a user to a workspace with a role.
type CollaboratorRequest struct {
	UserID uuid.UUID
	RoleID uuid.UUID
}

// RoleRequest holds parameters for creating or updating a role.
type RoleRequest struct {
	Name         string
	Description  string
	IsUserRole   bool
	IsAPIKeyRole bool
	Permissions  []RolePermissionRequest
}

// RolePermissionRequest is one (permission_type, resource_type) grant.
type RolePermissionRequest struct {
	PermissionType string
	ResourceType   string
}

// APIKeyRequest holds parameters for creating an API key.
type APIKeyRequest struct {
	Name   string
	RoleID uuid.UUID
}

// APIKeyResult carries the raw secret exactly once, at creation or
// regeneration.
type APIKeyResult struct {
	Key    *models.APIKey
	Secret string
}

// ObservationPoint is one point in a bulk append request.
type ObservationPoint struct {
	PhenomenonTime string
	Result         float64
	QualityCode    *string
}
