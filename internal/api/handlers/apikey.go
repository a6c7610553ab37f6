package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/service"
)

type APIKeyHandler struct {
	svc *service.APIKeyService
}

func NewAPIKeyHandler(svc *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{svc: svc}
}

type apiKeyRequest struct {
	Name   string    `json:"name" binding:"required"`
	RoleID uuid.UUID `json:"role_id" binding:"required"`
}

// apiKeyResponse carries the raw secret on creation and regeneration
// only.
type apiKeyResponse struct {
	*models.APIKey
	Key string `json:"key"`
}

// ListAPIKeys returns the workspace's API keys.
func (h *APIKeyHandler) ListAPIKeys(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	keys, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

// CreateAPIKey issues a new key. The secret in the response is shown
// exactly once.
func (h *APIKeyHandler) CreateAPIKey(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req apiKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, service.APIKeyRequest{
		Name:   req.Name,
		RoleID: req.RoleID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, apiKeyResponse{APIKey: result.Key, Key: result.Secret})
}

// RegenerateAPIKey replaces the key's secret, invalidating the old one.
func (h *APIKeyHandler) RegenerateAPIKey(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	keyID, ok := pathID(c, "key_id")
	if !ok {
		return
	}

	result, err := h.svc.Regenerate(c.Request.Context(), auth.PrincipalFromContext(c), wsID, keyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiKeyResponse{APIKey: result.Key, Key: result.Secret})
}

// DeleteAPIKey revokes a key.
func (h *APIKeyHandler) DeleteAPIKey(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	keyID, ok := pathID(c, "key_id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), auth.PrincipalFromContext(c), wsID, keyID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
