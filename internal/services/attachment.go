package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrAttachmentNotFound  = response.NewNotFound("ATTACHMENT_NOT_FOUND", "attachment not found")
	ErrFileTooLarge        = response.NewBadRequest("FILE_TOO_LARGE", "file exceeds the upload size limit")
	ErrUnsupportedFileType = response.NewBadRequest("UNSUPPORTED_FILE_TYPE", "file type is not allowed")
	ErrEmptyFile           = response.NewBadRequest("EMPTY_FILE", "file is empty")
	ErrInvalidToken        = response.NewUnauthorized("INVALID_DOWNLOAD_TOKEN", "download token is invalid")
	ErrTokenExpired        = response.NewUnauthorized("DOWNLOAD_TOKEN_EXPIRED", "download token has expired")
)

var allowedMimeTypes = toSet(
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"application/pdf",
	"text/plain",
	"text/csv",
	"text/markdown",
	"application/json",
	"application/zip",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
)

func toSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// sniffLen is how much of an upload is read for content detection.
const sniffLen = 3072

type AttachmentService struct {
	db       *gorm.DB
	projects *ProjectService
	storage  *LocalStorage
	secret   []byte
	tokenTTL time.Duration
	maxBytes int64
	now      func() time.Time
}

func NewAttachmentService(db *gorm.DB, projects *ProjectService, storage *LocalStorage, storageCfg *config.StorageConfig, cfg *config.AttachmentConfig) *AttachmentService {
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AttachmentService{
		db:       db,
		projects: projects,
		storage:  storage,
		secret:   []byte(cfg.TokenSecret),
		tokenTTL: ttl,
		maxBytes: storageCfg.MaxUploadBytes(),
		now:      time.Now,
	}
}

// UploadInput is one uploaded file.
type UploadInput struct {
	EntityType   string
	EntityID     uint
	Filename     string
	DeclaredType string
	Size         int64
	Content      io.Reader
}

type DownloadURL struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Upload validates size and type, stores the file and records it.
func (s *AttachmentService) Upload(in *UploadInput, userID uint) (*models.Attachment, error) {
	if _, err := s.projects.RequireEntityAccess(in.EntityType, in.EntityID, userID); err != nil {
		return nil, err
	}
	if in.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrEmptyFile
	}

	mimeType, ok := resolveMimeType(in.DeclaredType, head)
	if !ok {
		return nil, ErrUnsupportedFileType.WithDetails(map[string]string{"mime_type": mimeType})
	}

	// One byte past the limit is enough to detect an oversized stream
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Content), s.maxBytes+1)
	rel, written, err := s.storage.Save(body, filepath.Ext(in.Filename), s.now())
	if err != nil {
		return nil, err
	}
	if written > s.maxBytes {
		s.storage.Remove(rel)
		return nil, ErrFileTooLarge
	}

	attachment := models.Attachment{
		RelatedEntityType: in.EntityType,
		RelatedEntityID:   in.EntityID,
		OriginalFilename:  filepath.Base(in.Filename),
		StoragePath:       rel,
		MimeType:          mimeType,
		FileSize:          written,
		UploadedBy:        userID,
	}
	if err := s.db.Create(&attachment).Error; err != nil {
		s.storage.Remove(rel)
		return nil, err
	}

	logger.Info().Uint("attachment_id", attachment.ID).Str("entity_type", in.EntityType).Uint("entity_id", in.EntityID).
		Int64("size", written).Str("mime_type", mimeType).Uint("user_id", userID).Msg("attachment uploaded")
	return &attachment, nil
}

// resolveMimeType prefers the declared type and falls back to content
// detection when the client sent nothing useful.
func resolveMimeType(declared string, head []byte) (string, bool) {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		mt = strings.ToLower(mt)
		return mt, allowedMimeTypes[mt]
	}

	detected := mimetype.Detect(head)
	for m := detected; m != nil; m = m.Parent() {
		mt, _, _ := mime.ParseMediaType(m.String())
		if allowedMimeTypes[mt] {
			return mt, true
		}
	}
	return detected.String(), false
}

func (s *AttachmentService) GetByID(id, userID uint) (*models.Attachment, error) {
	attachment, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.RequireEntityAccess(attachment.RelatedEntityType, attachment.RelatedEntityID, userID); err != nil {
		return nil, err
	}
	return attachment, nil
}

func (s *AttachmentService) List(entityType string, entityID, userID uint) ([]models.Attachment, error) {
	if _, err := s.projects.RequireEntityAccess(entityType, entityID, userID); err != nil {
		return nil, err
	}

	var attachments []models.Attachment
	if err := s.db.Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
		Order("created_at DESC, id DESC").
		Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

// Delete removes the record and the stored file. Uploader only.
func (s *AttachmentService) Delete(id, userID uint) error {
	attachment, err := s.GetByID(id, userID)
	if err != nil {
		return err
	}
	if attachment.UploadedBy != userID {
		return ErrForbidden
	}

	if err := s.db.Delete(&models.Attachment{}, attachment.ID).Error; err != nil {
		return err
	}
	if err := s.storage.Remove(attachment.StoragePath); err != nil {
		logger.Warn().Err(err).Uint("attachment_id", id).Msg("failed to remove attachment file")
	}
	return nil
}

// SignedURL issues a time-limited download link for an attachment the user
// can access.
func (s *AttachmentService) SignedURL(id, userID uint) (*DownloadURL, error) {
	attachment, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.tokenTTL)
	token := s.GenerateToken(attachment.ID, expiresAt)
	return &DownloadURL{
		Token:     token,
		URL:       "/api/attachments/download?token=" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// GenerateToken returns base64url("id:expiresAtMs:hex(HMAC-SHA256(secret, "id:expiresAtMs"))").
func (s *AttachmentService) GenerateToken(id uint, expiresAt time.Time) string {
	payload := fmt.Sprintf("%d:%d", id, expiresAt.UnixMilli())
	return base64.RawURLEncoding.EncodeToString([]byte(payload + ":" + s.sign(payload)))
}

// VerifyToken checks the signature and expiry and returns the attachment id.
func (s *AttachmentService) VerifyToken(token string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return 0, ErrInvalidToken
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	expiresAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	expected := s.sign(parts[0] + ":" + parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return 0, ErrInvalidToken
	}
	if s.now().UnixMilli() > expiresAt {
		return 0, ErrTokenExpired
	}
	return uint(id), nil
}

// OpenByToken verifies a download token and opens the file it grants.
func (s *AttachmentService) OpenByToken(token string) (*models.Attachment, *os.File, error) {
	id, err := s.VerifyToken(token)
	if err != nil {
		return nil, nil, err
	}
	attachment, err := s.load(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.storage.Open(attachment.StoragePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return attachment, f, nil
}

func (s *AttachmentService) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *AttachmentService) load(id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	if err := s.db.First(&attachment, id).Error; err != nil {
		return nil, notFoundOr(err, ErrAttachmentNotFound)
	}
	return &attachment, nil
}
