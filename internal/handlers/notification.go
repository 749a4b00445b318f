package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	queue               services.Notifier
}

func NewNotificationHandler(notificationService *services.NotificationService, queue services.Notifier) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, queue: queue}
}

// List
// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var req services.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.notificationService.List(middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// UnreadCount
// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"unread_count": count})
}

// MarkAsRead keeps the first read_at on repeated calls
// PATCH /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	n, err := h.notificationService.MarkAsRead(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, n)
}

// MarkAllAsRead
// PATCH /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	updated, err := h.notificationService.MarkAllAsRead(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// Delete
// DELETE /api/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Send queues a notification for any user. Admin only.
// POST /api/notifications (also /api/admin/notifications)
func (h *NotificationHandler) Send(c *gin.Context) {
	var req services.CreateNotificationRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.notificationService.Send(h.queue, &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"queued": true})
}
