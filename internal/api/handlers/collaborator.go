package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/service"
)

type CollaboratorHandler struct {
	svc *service.CollaboratorService
}

func NewCollaboratorHandler(svc *service.CollaboratorService) *CollaboratorHandler {
	return &CollaboratorHandler{svc: svc}
}

type collaboratorRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	RoleID uuid.UUID `json:"role_id" binding:"required"`
}

type updateCollaboratorRequest struct {
	RoleID uuid.UUID `json:"role_id" binding:"required"`
}

// ListCollaborators returns the workspace's collaborators.
func (h *CollaboratorHandler) ListCollaborators(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	collabs, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, collabs)
}

// AddCollaborator links a user to the workspace with a role.
func (h *CollaboratorHandler) AddCollaborator(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req collaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	collab, err := h.svc.Add(c.Request.Context(), auth.PrincipalFromContext(c), wsID, service.CollaboratorRequest{
		UserID: req.UserID,
		RoleID: req.RoleID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, collab)
}

// UpdateCollaborator changes a collaborator's role.
func (h *CollaboratorHandler) UpdateCollaborator(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	var req updateCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	collab, err := h.svc.UpdateRole(c.Request.Context(), auth.PrincipalFromContext(c), wsID, userID, req.RoleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, collab)
}

// RemoveCollaborator drops a collaborator from the workspace.
func (h *CollaboratorHandler) RemoveCollaborator(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "user_id")
	if !ok {
		return
	}

	if err := h.svc.Remove(c.Request.Context(), auth.PrincipalFromContext(c), wsID, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
