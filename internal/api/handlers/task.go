package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/service"
)

type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type taskRequest struct {
	Name                  string               `json:"name" binding:"required"`
	DataConnectionID      uuid.UUID            `json:"data_connection_id" binding:"required"`
	OrchestrationSystemID uuid.UUID            `json:"orchestration_system_id" binding:"required"`
	Crontab               string               `json:"crontab"`
	IntervalSeconds       *int                 `json:"interval_seconds"`
	Active                bool                 `json:"active"`
	Mappings              []taskMappingRequest `json:"mappings"`
}

type taskMappingRequest struct {
	SourceIdentifier string                   `json:"source_identifier" binding:"required"`
	Paths            []taskMappingPathRequest `json:"paths" binding:"required"`
}

type taskMappingPathRequest struct {
	DatastreamID    uuid.UUID                   `json:"datastream_id" binding:"required"`
	Transformations []models.PathTransformation `json:"transformations"`
}

func (r taskRequest) toModel() models.Task {
	task := models.Task{
		Name:                  r.Name,
		DataConnectionID:      r.DataConnectionID,
		OrchestrationSystemID: r.OrchestrationSystemID,
		Crontab:               r.Crontab,
		IntervalSeconds:       r.IntervalSeconds,
		Active:                r.Active,
	}
	for _, m := range r.Mappings {
		mapping := models.TaskMapping{SourceIdentifier: m.SourceIdentifier}
		for _, p := range m.Paths {
			mapping.Paths = append(mapping.Paths, models.TaskMappingPath{
				DatastreamID:    p.DatastreamID,
				Transformations: p.Transformations,
			})
		}
		task.Mappings = append(task.Mappings, mapping)
	}
	return task
}

// ListTasks returns the tasks visible to the caller.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	tasks, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GetTask returns one task with its mappings.
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	task, err := h.svc.Get(auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask adds a task to a workspace.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	wsID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	task, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask replaces a task's configuration and mappings.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	task, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), id, req.toModel())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task with its mappings and run history.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
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

// TriggerTask dispatches an immediate run.
func (h *TaskHandler) TriggerTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	runID, err := h.svc.Trigger(c.Request.Context(), auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// ListTaskRuns returns the task's run history, newest first.
func (h *TaskHandler) ListTaskRuns(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
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

	runs, err := h.svc.Runs(auth.PrincipalFromContext(c), id, limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}
