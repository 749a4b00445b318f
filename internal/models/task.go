package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	EntityTypeTask    = "task"
	EntityTypeSubtask = "subtask"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task belongs to one project; its status must come from the project's workflow.
type Task struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ProjectID       uint            `gorm:"index;not null" json:"project_id"`
	Title           string          `gorm:"size:500;not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	StatusID        uint            `gorm:"index;not null" json:"status_id"`
	Status          *WorkflowStatus `gorm:"foreignKey:StatusID" json:"status,omitempty"`
	AssignedTo      *uint           `gorm:"index" json:"assigned_to"`
	Priority        string          `gorm:"size:20;default:medium" json:"priority"` // low, medium, high, urgent
	StartDate       *time.Time      `json:"start_date"`
	DueDate         *time.Time      `gorm:"index" json:"due_date"`
	EstimatedHours  *float64        `json:"estimated_hours"`
	EstimatedPoints *float64        `json:"estimated_points"`
	Progress        int             `gorm:"default:0" json:"progress"`
	CreatedBy       uint            `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Task) TableName() string { return "tasks" }

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// IsValidEntityType reports whether t names a task or subtask.
func IsValidEntityType(t string) bool {
	return t == EntityTypeTask || t == EntityTypeSubtask
}
