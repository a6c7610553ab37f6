package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/service"
)

type DataConnectionHandler struct {
	svc    *service.DataConnectionService
	sysSvc *service.OrchestrationSystemService
}

func NewDataConnectionHandler(svc *service.DataConnectionService, sysSvc *service.OrchestrationSystemService) *DataConnectionHandler {
	return &DataConnectionHandler{svc: svc, sysSvc: sysSvc}
}

type dataConnectionRequest struct {
	Name                string                 `json:"name" binding:"required"`
	ExtractorType       string                 `json:"extractor_type" binding:"required"`
	ExtractorSettings   map[string]interface{} `json:"extractor_settings"`
	TransformerType     string                 `json:"transformer_type" binding:"required"`
	TransformerSettings map[string]interface{} `json:"transformer_settings"`
	LoaderType          string                 `json:"loader_type" binding:"required"`
	LoaderSettings      map[string]interface{} `json:"loader_settings"`
}

func (r dataConnectionRequest) toModel() models.DataConnection {
	return models.DataConnection{
		Name:                r.Name,
		ExtractorType:       r.ExtractorType,
		ExtractorSettings:   r.ExtractorSettings,
		TransformerType:     r.TransformerType,
		TransformerSettings: r.TransformerSettings,
		LoaderType:          r.LoaderType,
		LoaderSettings:      r.LoaderSettings,
	}
}

// ListDataConnections returns the connections visible to the caller.
func (h *DataConnectionHandler) ListDataConnections(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	conns, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, conns)
}

// GetDataConnection returns one connection with credentials redacted.
func (h *DataConnectionHandler) GetDataConnection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	conn, err := h.svc.Get(auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// CreateDataConnection adds a connection. Without ?workspace_id= the
// connection is system-wide, which only staff may create.
func (h *DataConnectionHandler) CreateDataConnection(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	var req dataConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	conn, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

// UpdateDataConnection replaces a connection's configuration.
func (h *DataConnectionHandler) UpdateDataConnection(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dataConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	conn, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), id, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// DeleteDataConnection removes a connection.
func (h *DataConnectionHandler) DeleteDataConnection(c *gin.Context) {
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

type orchestrationSystemRequest struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// ListOrchestrationSystems returns the systems visible to the caller.
func (h *DataConnectionHandler) ListOrchestrationSystems(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	systems, err := h.sysSvc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, systems)
}

// CreateOrchestrationSystem registers a system.
func (h *DataConnectionHandler) CreateOrchestrationSystem(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	var req orchestrationSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	system, err := h.sysSvc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, models.OrchestrationSystem{
		Name: req.Name,
		Type: req.Type,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, system)
}

// DeleteOrchestrationSystem removes a system.
func (h *DataConnectionHandler) DeleteOrchestrationSystem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.sysSvc.Delete(c.Request.Context(), auth.PrincipalFromContext(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
