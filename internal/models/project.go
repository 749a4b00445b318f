package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProjectStatusActive    = "active"
	ProjectStatusArchived  = "archived"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

// Project is the authorization root for tasks and everything beneath them.
// WorkflowID is fixed at creation.
type Project struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	OwnerID     uint           `gorm:"index;not null" json:"owner_id"`
	WorkflowID  uint           `gorm:"index;not null" json:"workflow_id"`
	Status      string         `gorm:"size:20;default:active;index" json:"status"` // active, archived, on_hold, completed
	StartDate   *time.Time     `json:"start_date"`
	EndDate     *time.Time     `json:"end_date"`
	Progress    int            `gorm:"-" json:"progress"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

// IsValidProjectStatus reports whether status is a known project status.
func IsValidProjectStatus(status string) bool {
	switch status {
	case ProjectStatusActive, ProjectStatusArchived, ProjectStatusOnHold, ProjectStatusCompleted:
		return true
	}
	return false
}
