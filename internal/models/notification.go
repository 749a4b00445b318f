package models

import "time"

const (
	NotificationTaskAssigned    = "task_assigned"
	NotificationSubtaskAssigned = "subtask_assigned"
	NotificationCommentReply    = "comment_reply"
	NotificationTaskDueSoon     = "task_due_soon"
	NotificationGeneral         = "general"
)

// Notification is an in-app message for a single user.
type Notification struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index:idx_notification_user_read;not null" json:"user_id"`
	Type       string     `gorm:"size:50;not null" json:"type"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	Message    string     `gorm:"type:text" json:"message"`
	IsRead     bool       `gorm:"index:idx_notification_user_read;default:false" json:"is_read"`
	ReadAt     *time.Time `json:"read_at"`
	ProjectID  *uint      `json:"project_id"`
	EntityType string     `gorm:"size:20" json:"entity_type,omitempty"`
	EntityID   *uint      `json:"entity_id"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
