package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/service"
)

type ObservationHandler struct {
	svc *service.ObservationService
}

func NewObservationHandler(svc *service.ObservationService) *ObservationHandler {
	return &ObservationHandler{svc: svc}
}

type observationPoint struct {
	PhenomenonTime string  `json:"phenomenon_time" binding:"required"`
	Result         float64 `json:"result"`
	QualityCode    *string `json:"quality_code"`
}

type appendObservationsRequest struct {
	Observations []observationPoint `json:"observations" binding:"required"`
}

// ListObservations returns a datastream's observations, optionally
// limited to a time window with ?from= and ?to= (RFC 3339).
func (h *ObservationHandler) ListObservations(c *gin.Context) {
	streamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid from timestamp"})
			return
		}
		from = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid to timestamp"})
			return
		}
		to = &t
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid limit"})
			return
		}
		limit = n
	}

	obs, err := h.svc.List(auth.PrincipalFromContext(c), streamID, from, to, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, obs)
}

// AppendObservations bulk-inserts points into a datastream.
func (h *ObservationHandler) AppendObservations(c *gin.Context) {
	streamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req appendObservationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	points := make([]service.ObservationPoint, len(req.Observations))
	for i, p := range req.Observations {
		points[i] = service.ObservationPoint{
			PhenomenonTime: p.PhenomenonTime,
			Result:         p.Result,
			QualityCode:    p.QualityCode,
		}
	}

	inserted, err := h.svc.Append(c.Request.Context(), auth.PrincipalFromContext(c), streamID, points)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"inserted": inserted})
}
