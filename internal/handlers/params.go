package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/pkg/response"
)

// paramID parses the named path parameter as an id. On failure it writes a
// 400 response and returns false.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "INVALID_ID", "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// bindJSON binds the body into req, writing a validation error on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ValidationError(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.ValidationError(c, err)
		return false
	}
	return true
}

// entityQuery selects the task or subtask that comments, attachments, time
// entries and audits hang off.
type entityQuery struct {
	EntityType string `form:"related_entity_type" binding:"required,oneof=task subtask"`
	EntityID   uint   `form:"related_entity_id" binding:"required"`
}
