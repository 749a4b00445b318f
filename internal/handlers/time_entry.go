package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type TimeEntryHandler struct {
	timeEntryService *services.TimeEntryService
}

func NewTimeEntryHandler(timeEntryService *services.TimeEntryService) *TimeEntryHandler {
	return &TimeEntryHandler{timeEntryService: timeEntryService}
}

// List
// GET /api/time-entries?related_entity_type=task&related_entity_id=1
func (h *TimeEntryHandler) List(c *gin.Context) {
	var q entityQuery
	if !bindQuery(c, &q) {
		return
	}

	entries, err := h.timeEntryService.List(q.EntityType, q.EntityID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// Summary returns the total minutes logged on an entity
// GET /api/time-entries/summary?related_entity_type=task&related_entity_id=1
func (h *TimeEntryHandler) Summary(c *gin.Context) {
	var q entityQuery
	if !bindQuery(c, &q) {
		return
	}

	summary, err := h.timeEntryService.Summary(q.EntityType, q.EntityID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summary)
}

// ListMine
// GET /api/time-entries/mine?from=2026-01-01&to=2026-01-31
func (h *TimeEntryHandler) ListMine(c *gin.Context) {
	var req services.MyTimeEntriesRequest
	if !bindQuery(c, &req) {
		return
	}

	entries, err := h.timeEntryService.ListMine(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// Create
// POST /api/time-entries
func (h *TimeEntryHandler) Create(c *gin.Context) {
	var req services.CreateTimeEntryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.timeEntryService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update
// PUT /api/time-entries/:id
func (h *TimeEntryHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateTimeEntryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.timeEntryService.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entry)
}

// Delete
// DELETE /api/time-entries/:id
func (h *TimeEntryHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.timeEntryService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
