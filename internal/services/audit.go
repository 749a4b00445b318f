package services

import (
	"encoding/json"
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"gorm.io/gorm"
)

const EntityTypeHTTP = "http"

// AuditEntry describes one change to record.
type AuditEntry struct {
	EntityType string
	EntityID   uint
	Action     string
	UserID     *uint
	OldValue   interface{}
	NewValue   interface{}
	IP         string
	UserAgent  string
}

// writeAudit stores entry through db, which may be a transaction.
func writeAudit(db *gorm.DB, entry AuditEntry) error {
	audit := models.Audit{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		UserID:     entry.UserID,
		OldValue:   marshalAuditValue(entry.OldValue),
		NewValue:   marshalAuditValue(entry.NewValue),
		IP:         entry.IP,
		UserAgent:  entry.UserAgent,
	}
	return db.Create(&audit).Error
}

func marshalAuditValue(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

type AuditService struct {
	db       *gorm.DB
	projects *ProjectService
}

func NewAuditService(db *gorm.DB, projects *ProjectService) *AuditService {
	return &AuditService{db: db, projects: projects}
}

type AuditListRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	EntityType string `form:"entity_type"`
	EntityID   uint   `form:"entity_id"`
	Action     string `form:"action"`
	UserID     *uint  `form:"user_id"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
}

type AuditListResponse struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Items    []models.Audit `json:"items"`
}

// Record stores an entry outside of any transaction. Failures are logged.
func (s *AuditService) Record(entry AuditEntry) {
	if err := writeAudit(s.db, entry); err != nil {
		logger.Warn().Err(err).Str("entity_type", entry.EntityType).Str("action", entry.Action).Msg("failed to write audit")
	}
}

// ListForEntity returns the history of a task or subtask the caller can access.
func (s *AuditService) ListForEntity(entityType string, entityID, userID uint) ([]models.Audit, error) {
	if _, err := s.projects.RequireEntityAccess(entityType, entityID, userID); err != nil {
		return nil, err
	}

	var audits []models.Audit
	if err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC, id DESC").
		Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}

// List is the unrestricted admin view.
func (s *AuditService) List(req *AuditListRequest) (*AuditListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize, 20)

	query := s.db.Model(&models.Audit{})
	if req.EntityType != "" {
		query = query.Where("entity_type = ?", req.EntityType)
	}
	if req.EntityID > 0 {
		query = query.Where("entity_id = ?", req.EntityID)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.UserID != nil {
		query = query.Where("user_id = ?", *req.UserID)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var audits []models.Audit
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&audits).Error; err != nil {
		return nil, err
	}

	return &AuditListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    audits,
	}, nil
}

// Cleanup deletes audits older than retentionDays.
func (s *AuditService) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.Audit{})
	return result.RowsAffected, result.Error
}
