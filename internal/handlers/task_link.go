package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type TaskLinkHandler struct {
	linkService *services.TaskLinkService
}

func NewTaskLinkHandler(linkService *services.TaskLinkService) *TaskLinkHandler {
	return &TaskLinkHandler{linkService: linkService}
}

// List
// GET /api/tasks/:id/links
func (h *TaskLinkHandler) List(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	links, err := h.linkService.List(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, links)
}

// Create links the task to target_task_id; paired types also get the inverse link
// POST /api/tasks/:id/links
func (h *TaskLinkHandler) Create(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CreateTaskLinkRequest
	if !bindJSON(c, &req) {
		return
	}

	link, err := h.linkService.Create(id, &req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Delete removes the link and its inverse
// DELETE /api/task-links/:id
func (h *TaskLinkHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.linkService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
