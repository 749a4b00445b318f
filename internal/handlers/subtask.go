package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type SubtaskHandler struct {
	subtaskService *services.SubtaskService
}

func NewSubtaskHandler(subtaskService *services.SubtaskService) *SubtaskHandler {
	return &SubtaskHandler{subtaskService: subtaskService}
}

// GET /api/subtasks/:id
func (h *SubtaskHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	subtask, err := h.subtaskService.GetByID(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtask)
}

// PUT /api/subtasks/:id
func (h *SubtaskHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateSubtaskRequest
	if !bindJSON(c, &req) {
		return
	}

	subtask, err := h.subtaskService.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtask)
}

// PUT /api/subtasks/:id/status
func (h *SubtaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateTaskStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	subtask, err := h.subtaskService.UpdateStatus(id, req.StatusID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtask)
}

// PUT /api/subtasks/:id/progress
func (h *SubtaskHandler) UpdateProgress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateProgressRequest
	if !bindJSON(c, &req) {
		return
	}

	subtask, err := h.subtaskService.UpdateProgress(id, *req.Progress, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtask)
}

// DELETE /api/subtasks/:id
func (h *SubtaskHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.subtaskService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
