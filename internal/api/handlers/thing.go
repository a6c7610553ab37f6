package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/service"
)

type ThingHandler struct {
	svc *service.ThingService
}

func NewThingHandler(svc *service.ThingService) *ThingHandler {
	return &ThingHandler{svc: svc}
}

type thingRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Elevation   *float64 `json:"elevation_m"`
	IsPrivate   bool     `json:"is_private"`
}

func (r thingRequest) toModel() models.Thing {
	return models.Thing{
		Name:        r.Name,
		Description: r.Description,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Elevation:   r.Elevation,
		IsPrivate:   r.IsPrivate,
	}
}

// ListThings returns the things visible to the caller.
func (h *ThingHandler) ListThings(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	things, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, things)
}

// GetThing returns one thing.
func (h *ThingHandler) GetThing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	thing, err := h.svc.Get(auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, thing)
}

// CreateThing adds a thing to a workspace.
func (h *ThingHandler) CreateThing(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req thingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	thing, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, thing)
}

// UpdateThing changes a thing's attributes.
func (h *ThingHandler) UpdateThing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req thingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	thing, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), id, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, thing)
}

// DeleteThing removes a thing, its datastreams, and their observations.
func (h *ThingHandler) DeleteThing(c *gin.Context) {
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
