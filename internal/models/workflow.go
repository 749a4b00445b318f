package models

import "time"

const (
	WorkflowTypeTask    = "task"
	WorkflowTypeSubtask = "subtask"
)

// Status phases, in their conventional order.
const (
	PhaseBacklog    = "backlog"
	PhasePlanning   = "planning"
	PhaseInProgress = "in_progress"
	PhaseFeedback   = "feedback"
	PhaseClosed     = "closed"
)

var Phases = []string{PhaseBacklog, PhasePlanning, PhaseInProgress, PhaseFeedback, PhaseClosed}

// Workflow is a reusable, ordered status pipeline for tasks or subtasks.
type Workflow struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	Name         string           `gorm:"size:200;not null" json:"name"`
	Description  string           `gorm:"size:1000" json:"description"`
	WorkflowType string           `gorm:"size:20;not null;index" json:"workflow_type"` // task, subtask
	CreatedBy    uint             `gorm:"index" json:"created_by"`
	IsTemplate   bool             `gorm:"default:false;index" json:"is_template"`
	Statuses     []WorkflowStatus `gorm:"foreignKey:WorkflowID" json:"statuses,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// WorkflowStatus belongs to exactly one workflow. Position is dense and 0-based
// within the workflow.
type WorkflowStatus struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WorkflowID uint      `gorm:"index;not null" json:"workflow_id"`
	Name       string    `gorm:"size:100;not null" json:"name"`
	Phase      string    `gorm:"size:20;not null" json:"phase"`
	ColorCode  string    `gorm:"size:20" json:"color_code"`
	Position   int       `gorm:"not null" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Workflow) TableName() string       { return "workflows" }
func (WorkflowStatus) TableName() string { return "workflow_statuses" }

// IsValidPhase reports whether phase is one of the known status phases.
func IsValidPhase(phase string) bool {
	for _, p := range Phases {
		if p == phase {
			return true
		}
	}
	return false
}
