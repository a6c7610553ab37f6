package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/service"
)

type RoleHandler struct {
	svc *service.RoleService
}

func NewRoleHandler(svc *service.RoleService) *RoleHandler {
	return &RoleHandler{svc: svc}
}

type roleRequest struct {
	Name         string                  `json:"name" binding:"required"`
	Description  string                  `json:"description"`
	IsUserRole   bool                    `json:"is_user_role"`
	IsAPIKeyRole bool                    `json:"is_apikey_role"`
	Permissions  []rolePermissionRequest `json:"permissions"`
}

type rolePermissionRequest struct {
	PermissionType string `json:"permission_type" binding:"required"`
	ResourceType   string `json:"resource_type" binding:"required"`
}

func (r roleRequest) toService() service.RoleRequest {
	grants := make([]service.RolePermissionRequest, len(r.Permissions))
	for i, g := range r.Permissions {
		grants[i] = service.RolePermissionRequest{
			PermissionType: g.PermissionType,
			ResourceType:   g.ResourceType,
		}
	}
	return service.RoleRequest{
		Name:         r.Name,
		Description:  r.Description,
		IsUserRole:   r.IsUserRole,
		IsAPIKeyRole: r.IsAPIKeyRole,
		Permissions:  grants,
	}
}

// ListRoles returns the roles usable in the workspace.
func (h *RoleHandler) ListRoles(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	roles, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// GetRole returns one role with its grants.
func (h *RoleHandler) GetRole(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "role_id")
	if !ok {
		return
	}

	role, err := h.svc.Get(auth.PrincipalFromContext(c), wsID, roleID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// CreateRole adds a workspace-scoped role.
func (h *RoleHandler) CreateRole(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	role, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, req.toService())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// UpdateRole replaces a role's metadata and grants.
func (h *RoleHandler) UpdateRole(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "role_id")
	if !ok {
		return
	}

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	role, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), wsID, roleID, req.toService())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// DeleteRole removes a role and everything assigned to it.
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "role_id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), auth.PrincipalFromContext(c), wsID, roleID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
