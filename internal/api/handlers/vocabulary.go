package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hydroserve/hydroserve/internal/auth"
	"github.com/hydroserve/hydroserve/internal/service"
)

// VocabularyHandler serves one vocabulary type. The generic service does
// the real work; the handler only shapes HTTP.
type VocabularyHandler[T any] struct {
	svc *service.VocabularyService[T]
}

func NewVocabularyHandler[T any](svc *service.VocabularyService[T]) *VocabularyHandler[T] {
	return &VocabularyHandler[T]{svc: svc}
}

// List returns the entries visible to the caller.
func (h *VocabularyHandler[T]) List(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	entries, err := h.svc.List(auth.PrincipalFromContext(c), wsID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Get returns one entry.
func (h *VocabularyHandler[T]) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	entry, err := h.svc.Get(auth.PrincipalFromContext(c), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Create adds an entry. Without ?workspace_id= the entry is system-wide,
// which only staff may create.
func (h *VocabularyHandler[T]) Create(c *gin.Context) {
	wsID, ok := workspaceQuery(c)
	if !ok {
		return
	}

	var entry T
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), auth.PrincipalFromContext(c), wsID, entry)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update applies field updates to an entry.
func (h *VocabularyHandler[T]) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	entry, err := h.svc.Update(c.Request.Context(), auth.PrincipalFromContext(c), id, updates)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Delete removes an entry.
func (h *VocabularyHandler[T]) Delete(c *gin.Context) {
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
