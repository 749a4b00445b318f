package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListForEntity returns the change history of a task or subtask
// GET /api/audits?related_entity_type=task&related_entity_id=1
func (h *AuditHandler) ListForEntity(c *gin.Context) {
	var q entityQuery
	if !bindQuery(c, &q) {
		return
	}

	audits, err := h.auditService.ListForEntity(q.EntityType, q.EntityID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, audits)
}

// List is the unrestricted admin view, including request audits.
// GET /api/admin/audits
func (h *AuditHandler) List(c *gin.Context) {
	var req services.AuditListRequest
	if !bindQuery(c, &req) {
		return
	}

	resp, err := h.auditService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
