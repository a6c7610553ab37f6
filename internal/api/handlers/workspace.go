package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/service"
)

type WorkspaceHandler struct {
	svc *service.WorkspaceService
}

func NewWorkspaceHandler(svc *service.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

type createWorkspaceRequest struct {
	Name      string `json:"name" binding:"required"`
	IsPrivate bool   `json:"is_private"`
}

type updateWorkspaceRequest struct {
	Name      *string `json:"name"`
	IsPrivate *bool   `json:"is_private"`
}

// ListWorkspaces returns the workspaces visible to the caller.
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.svc.List(auth.PrincipalFromContext(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, workspaces)
}

// CreateWorkspace makes the caller the owner of a new workspace.
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ws, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), service.CreateWorkspaceRequest{
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ws)
}

// GetWorkspace returns a workspace by ID.
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ws, err := h.svc.Get(auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// UpdateWorkspace changes a workspace's name or privacy.
func (h *WorkspaceHandler) UpdateWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ws, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), id, service.UpdateWorkspaceRequest{
		Name:      req.Name,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// DeleteWorkspace removes a workspace and everything it owns.
func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), auth.PrincipalFromContext(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
