package models

import "time"

const (
	LinkBlocks       = "blocks"
	LinkBlockedBy    = "blocked_by"
	LinkDependsOn    = "depends_on"
	LinkDependencyOf = "dependency_of"
	LinkDuplicates   = "duplicates"
	LinkDuplicatedBy = "duplicated_by"
	LinkRelatesTo    = "relates_to"
)

// TaskLink is a directed edge between two tasks.
type TaskLink struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SourceTaskID uint      `gorm:"uniqueIndex:idx_task_link;not null" json:"source_task_id"`
	TargetTaskID uint      `gorm:"uniqueIndex:idx_task_link;not null;index" json:"target_task_id"`
	LinkType     string    `gorm:"uniqueIndex:idx_task_link;size:30;not null" json:"link_type"`
	TargetTask   *Task     `gorm:"foreignKey:TargetTaskID" json:"target_task,omitempty"`
	CreatedBy    uint      `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func (TaskLink) TableName() string { return "task_links" }
