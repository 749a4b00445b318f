package models

import "time"

// Comment on a task or subtask. Threads are two levels deep: a top-level
// comment and its direct replies.
type Comment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RelatedEntityType string    `gorm:"size:20;not null;index:idx_comment_entity" json:"related_entity_type"`
	RelatedEntityID   uint      `gorm:"not null;index:idx_comment_entity" json:"related_entity_id"`
	ParentCommentID   *uint     `gorm:"index" json:"parent_comment_id"`
	AuthorID          uint      `gorm:"index;not null" json:"author_id"`
	Author            *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content           string    `gorm:"type:text;not null" json:"content"`
	Replies           []Comment `gorm:"-" json:"replies,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Comment) TableName() string { return "comments" }
