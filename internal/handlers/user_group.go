package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type UserGroupHandler struct {
	groupService *services.UserGroupService
}

func NewUserGroupHandler(groupService *services.UserGroupService) *UserGroupHandler {
	return &UserGroupHandler{groupService: groupService}
}

// List
// GET /api/user-groups
func (h *UserGroupHandler) List(c *gin.Context) {
	groups, err := h.groupService.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, groups)
}

// GetByID returns a group with its members
// GET /api/user-groups/:id
func (h *UserGroupHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	group, err := h.groupService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// Create
// POST /api/user-groups
func (h *UserGroupHandler) Create(c *gin.Context) {
	var req services.CreateUserGroupRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.groupService.Create(&req, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// AddMember
// POST /api/user-groups/:id/members
func (h *UserGroupHandler) AddMember(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.GroupMemberRequest
	if !bindJSON(c, &req) {
		return
	}

	group, err := h.groupService.AddMember(id, req.UserID, middleware.GetUserID(c), middleware.IsAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, group)
}

// RemoveMember
// DELETE /api/user-groups/:id/members/:userId
func (h *UserGroupHandler) RemoveMember(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	memberID, ok := paramID(c, "userId")
	if !ok {
		return
	}

	if err := h.groupService.RemoveMember(id, memberID, middleware.GetUserID(c), middleware.IsAdmin(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete removes the group and the project access granted through it
// DELETE /api/user-groups/:id
func (h *UserGroupHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.groupService.Delete(id, middleware.GetUserID(c), middleware.IsAdmin(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
