package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type WorkflowHandler struct {
	workflowService *services.WorkflowService
}

func NewWorkflowHandler(workflowService *services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflowService: workflowService}
}

// List returns templates plus the caller's own workflows
// GET /api/workflows?workflow_type=task
func (h *WorkflowHandler) List(c *gin.Context) {
	workflows, err := h.workflowService.List(middleware.GetUserID(c), c.Query("workflow_type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, workflows)
}

// GetByID
// GET /api/workflows/:id
func (h *WorkflowHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	workflow, err := h.workflowService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, workflow)
}

// Create
// POST /api/workflows
func (h *WorkflowHandler) Create(c *gin.Context) {
	var req services.CreateWorkflowRequest
	if !bindJSON(c, &req) {
		return
	}

	workflow, err := h.workflowService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, workflow)
}

// Update
// PUT /api/workflows/:id
func (h *WorkflowHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateWorkflowRequest
	if !bindJSON(c, &req) {
		return
	}

	workflow, err := h.workflowService.Update(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, workflow)
}

// Delete
// DELETE /api/workflows/:id
func (h *WorkflowHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.workflowService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// AddStatus
// POST /api/workflows/:id/statuses
func (h *WorkflowHandler) AddStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.AddStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	status, err := h.workflowService.AddStatus(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, status)
}

// UpdateStatus
// PUT /api/workflows/:id/statuses/:statusId
func (h *WorkflowHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	statusID, ok := paramID(c, "statusId")
	if !ok {
		return
	}
	var req services.UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	status, err := h.workflowService.UpdateStatus(id, statusID, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// DeleteStatus fails while tasks still use the status
// DELETE /api/workflows/:id/statuses/:statusId
func (h *WorkflowHandler) DeleteStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	statusID, ok := paramID(c, "statusId")
	if !ok {
		return
	}

	if err := h.workflowService.DeleteStatus(id, statusID, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// ReorderStatuses
// PATCH /api/workflows/:id/statuses/reorder
func (h *WorkflowHandler) ReorderStatuses(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ReorderStatusesRequest
	if !bindJSON(c, &req) {
		return
	}

	statuses, err := h.workflowService.ReorderStatuses(id, req.IDs(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, statuses)
}
