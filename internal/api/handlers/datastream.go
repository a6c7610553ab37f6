package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/service"
)

type DatastreamHandler struct {
	svc *service.DatastreamService
}

func NewDatastreamHandler(svc *service.DatastreamService) *DatastreamHandler {
	return &DatastreamHandler{svc: svc}
}

type datastreamRequest struct {
	Name               string    `json:"name" binding:"required"`
	Description        string    `json:"description"`
	ThingID            uuid.UUID `json:"thing_id" binding:"required"`
	SensorID           uuid.UUID `json:"sensor_id" binding:"required"`
	ObservedPropertyID uuid.UUID `json:"observed_property_id" binding:"required"`
	UnitID             uuid.UUID `json:"unit_id" binding:"required"`
	ProcessingLevelID  uuid.UUID `json:"processing_level_id" binding:"required"`
	IsPrivate          bool      `json:"is_private"`
}

func (r datastreamRequest) toModel() models.Datastream {
	return models.Datastream{
		Name:               r.Name,
		Description:        r.Description,
		ThingID:            r.ThingID,
		SensorID:           r.SensorID,
		ObservedPropertyID: r.ObservedPropertyID,
		UnitID:             r.UnitID,
		ProcessingLevelID:  r.ProcessingLevelID,
		IsPrivate:          r.IsPrivate,
	}
}

// ListDatastreams returns the datastreams visible to the caller.
func (h *DatastreamHandler) ListDatastreams(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	var thingID *uuid.UUID
	if raw := c.Query("thing_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid thing_id"})
			return
		}
		thingID = &id
	}

	streams, err := h.svc.List(auth.PrincipalFromContext(c), wsID, thingID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, streams)
}

// GetDatastream returns one datastream.
func (h *DatastreamHandler) GetDatastream(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	stream, err := h.svc.Get(auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

// CreateDatastream adds a datastream to a workspace.
func (h *DatastreamHandler) CreateDatastream(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req datastreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	stream, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stream)
}

// UpdateDatastream changes a datastream's metadata.
func (h *DatastreamHandler) UpdateDatastream(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req datastreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	stream, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), id, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

// DeleteDatastream removes a datastream and its observations.
func (h *DatastreamHandler) DeleteDatastream(c *gin.Context) {
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
