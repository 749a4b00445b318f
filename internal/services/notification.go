package services

import (
	"context"
	"fmt"
	"time"

	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/pkg/logger"
	"github.com/huangang/taskhub/pkg/response"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = response.NewNotFound("NOTIFICATION_NOT_FOUND", "notification not found")

// NotificationService stores in-app notifications and pushes them to the
// recipient's open event streams.
type NotificationService struct {
	db  *gorm.DB
	hub *SSEHub
}

func NewNotificationService(db *gorm.DB, hub *SSEHub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

type NotificationListRequest struct {
	Page       int  `form:"page" binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size" binding:"omitempty,min=1,max=100"`
	UnreadOnly bool `form:"unread_only"`
}

type NotificationListResponse struct {
	Total       int64                 `json:"total"`
	UnreadCount int64                 `json:"unread_count"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	Items       []models.Notification `json:"items"`
}

type CreateNotificationRequest struct {
	UserID     uint   `json:"user_id" binding:"required"`
	Type       string `json:"type" binding:"omitempty,max=50"`
	Title      string `json:"title" binding:"required,max=200"`
	Message    string `json:"message"`
	ProjectID  *uint  `json:"project_id"`
	EntityType string `json:"entity_type" binding:"omitempty,oneof=task subtask"`
	EntityID   *uint  `json:"entity_id"`
}

// Process is the queue processor: it persists the job as a notification and
// publishes it.
func (s *NotificationService) Process(ctx context.Context, job *NotificationJob) error {
	notification := models.Notification{
		UserID:     job.UserID,
		Type:       job.Type,
		Title:      job.Title,
		Message:    job.Message,
		ProjectID:  job.ProjectID,
		EntityType: job.EntityType,
		EntityID:   job.EntityID,
	}
	if notification.Type == "" {
		notification.Type = models.NotificationGeneral
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.Publish(NotificationEvent{
			ID:         notification.ID,
			UserID:     notification.UserID,
			Type:       notification.Type,
			Title:      notification.Title,
			Message:    notification.Message,
			ProjectID:  notification.ProjectID,
			EntityType: notification.EntityType,
			EntityID:   notification.EntityID,
			CreatedAt:  notification.CreatedAt,
		})
	}
	return nil
}

// Send validates the recipient and hands the notification to queue.
func (s *NotificationService) Send(queue Notifier, req *CreateNotificationRequest) error {
	if err := s.db.Select("id").First(&models.User{}, req.UserID).Error; err != nil {
		return notFoundOr(err, ErrUserNotFound)
	}
	return queue.Enqueue(&NotificationJob{
		UserID:     req.UserID,
		Type:       req.Type,
		Title:      req.Title,
		Message:    req.Message,
		ProjectID:  req.ProjectID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
	})
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(userID uint, req *NotificationListRequest) (*NotificationListResponse, error) {
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize, 20)

	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}
	unread, err := s.UnreadCount(userID)
	if err != nil {
		return nil, err
	}

	var items []models.Notification
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, err
	}

	return &NotificationListResponse{
		Total:       total,
		UnreadCount: unread,
		Page:        req.Page,
		PageSize:    req.PageSize,
		Items:       items,
	}, nil
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkAsRead is idempotent: read_at keeps the time of the first read.
func (s *NotificationService) MarkAsRead(id, userID uint) (*models.Notification, error) {
	notification, err := s.get(id, userID)
	if err != nil {
		return nil, err
	}
	if notification.IsRead {
		return notification, nil
	}

	now := time.Now()
	if err := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, err
	}
	return s.get(id, userID)
}

// MarkAllAsRead marks every unread notification of userID and returns how
// many changed.
func (s *NotificationService) MarkAllAsRead(userID uint) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	return result.RowsAffected, result.Error
}

func (s *NotificationService) Delete(id, userID uint) error {
	result := s.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Cleanup deletes read notifications older than retentionDays.
func (s *NotificationService) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("is_read = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

func (s *NotificationService) get(id, userID uint) (*models.Notification, error) {
	var notification models.Notification
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&notification).Error; err != nil {
		return nil, notFoundOr(err, ErrNotificationNotFound)
	}
	return &notification, nil
}

func notifyAssigned(n Notifier, entityType string, entityID, projectID, assigneeID uint, title string) {
	kind := models.NotificationTaskAssigned
	if entityType == models.EntityTypeSubtask {
		kind = models.NotificationSubtaskAssigned
	}
	notify(n, &NotificationJob{
		UserID:     assigneeID,
		Type:       kind,
		Title:      fmt.Sprintf("You were assigned a %s", entityType),
		Message:    title,
		ProjectID:  &projectID,
		EntityType: entityType,
		EntityID:   &entityID,
	})
}

// notify enqueues a job. Delivery failures are logged and never fail the
// caller's operation.
func notify(n Notifier, job *NotificationJob) {
	if n == nil {
		return
	}
	if err := n.Enqueue(job); err != nil {
		logger.Warn().Err(err).Uint("user_id", job.UserID).Str("type", job.Type).Msg("failed to enqueue notification")
	}
}
