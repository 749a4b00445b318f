package handlers

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/middleware"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// Upload stores a multipart "file" for the entity named by the form fields
// related_entity_type and related_entity_id.
// POST /api/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	var form entityQuery
	if err := c.ShouldBind(&form); err != nil {
		response.ValidationError(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "FILE_REQUIRED", "multipart field \"file\" is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	attachment, err := h.attachmentService.Upload(&services.UploadInput{
		EntityType:   form.EntityType,
		EntityID:     form.EntityID,
		Filename:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Size:         header.Size,
		Content:      file,
	}, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attachment)
}

// List
// GET /api/attachments?related_entity_type=task&related_entity_id=1
func (h *AttachmentHandler) List(c *gin.Context) {
	var q entityQuery
	if !bindQuery(c, &q) {
		return
	}

	attachments, err := h.attachmentService.List(q.EntityType, q.EntityID, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, attachments)
}

// GetByID
// GET /api/attachments/:id
func (h *AttachmentHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	attachment, err := h.attachmentService.GetByID(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, attachment)
}

// SignedURL issues a short-lived download link
// GET /api/attachments/:id/url
func (h *AttachmentHandler) SignedURL(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	link, err := h.attachmentService.SignedURL(id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, link)
}

// Download streams the file granted by a signed token. No session required.
// GET /api/attachments/download?token=
func (h *AttachmentHandler) Download(c *gin.Context) {
	attachment, file, err := h.attachmentService.OpenByToken(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": attachment.OriginalFilename})
	c.DataFromReader(http.StatusOK, attachment.FileSize, attachment.MimeType, file, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	})
}

// Delete removes the record and the stored file. Uploader only.
// DELETE /api/attachments/:id
func (h *AttachmentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.attachmentService.Delete(id, middleware.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
