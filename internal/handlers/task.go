package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type TaskHandler struct {
	taskService    *services.TaskService
	subtaskService *services.SubtaskService
}

func NewTaskHandler(taskService *services.TaskService, subtaskService *services.SubtaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService, subtaskService: subtaskService}
}

// List returns a filtered page of a project's tasks
// GET /api/projects/:id/tasks
func (h *TaskHandler) List(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.TaskListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.taskService.List(projectID, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Create
// POST /api/projects/:id/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Create(projectID, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// GetByID
// GET /api/tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.GetByID(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// Update
// PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// UpdateStatus moves the task to another status of the project workflow
// PUT /api/tasks/:id/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateTaskStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.UpdateStatus(id, req.StatusID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// UpdateProgress
// PUT /api/tasks/:id/progress
func (h *TaskHandler) UpdateProgress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateProgressRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.taskService.UpdateProgress(id, *req.Progress, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// CalculateProgress returns the roll-up from subtasks without storing it
// GET /api/tasks/:id/progress
func (h *TaskHandler) CalculateProgress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	progress, err := h.taskService.CalculateProgress(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"task_id": id, "progress": progress})
}

// SyncProgress stores the subtask roll-up on the task
// POST /api/tasks/:id/progress/sync
func (h *TaskHandler) SyncProgress(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.UpdateProgressFromSubtasks(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// Delete soft-deletes the task and its subtasks
// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ListSubtasks
// GET /api/tasks/:id/subtasks
func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	subtasks, err := h.subtaskService.List(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subtasks)
}

// CreateSubtask
// POST /api/tasks/:id/subtasks
func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreateSubtaskRequest
	if !bindJSON(c, &req) {
		return
	}

	subtask, err := h.subtaskService.Create(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subtask)
}
