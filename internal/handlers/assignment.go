package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type AssignmentHandler struct {
	assignmentService *services.AssignmentService
}

func NewAssignmentHandler(assignmentService *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

type assignmentListQuery struct {
	AssigneeID uint `form:"assignee_id"`
}

// AssignTask
// PUT /api/tasks/:id/assignee
func (h *AssignmentHandler) AssignTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.AssignRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.assignmentService.AssignTask(id, req.UserID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// UnassignTask
// DELETE /api/tasks/:id/assignee
func (h *AssignmentHandler) UnassignTask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	task, err := h.assignmentService.UnassignTask(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// AssignSubtask
// PUT /api/subtasks/:id/assignee
func (h *AssignmentHandler) AssignSubtask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.AssignRequest
	if !bindJSON(c, &req) {
		return
	}

	subtask, err := h.assignmentService.AssignSubtask(id, req.UserID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtask)
}

// UnassignSubtask
// DELETE /api/subtasks/:id/assignee
func (h *AssignmentHandler) UnassignSubtask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	subtask, err := h.assignmentService.UnassignSubtask(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtask)
}

// List returns the work assigned to assignee_id (default: the caller),
// limited to projects the caller can see.
// GET /api/assignments
func (h *AssignmentHandler) List(c *gin.Context) {
	var q assignmentListQuery
	if !bindQuery(c, &q) {
		return
	}
	callerID := middleware.GetUserID(c)
	if q.AssigneeID == 0 {
		q.AssigneeID = callerID
	}

	items, err := h.assignmentService.ListAssignments(q.AssigneeID, callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, items)
}
