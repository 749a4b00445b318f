package models

import (
	"time"

	"gorm.io/gorm"
)

// Subtask belongs to one task. Its status comes from a subtask-type workflow.
type Subtask struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	TaskID      uint            `gorm:"index;not null" json:"task_id"`
	Title       string          `gorm:"size:500;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	StatusID    uint            `gorm:"index;not null" json:"status_id"`
	Status      *WorkflowStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
	AssignedTo  *uint           `gorm:"index" json:"assigned_to"`
	Priority    string          `gorm:"size:20;default:medium" json:"priority"`
	StartDate   *time.Time      `json:"start_date"`
	DueDate     *time.Time      `json:"due_date"`
	Progress    int             `gorm:"default:0" json:"progress"`
	CreatedBy   uint            `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Subtask) TableName() string { return "subtasks" }
