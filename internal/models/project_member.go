package models

import "time"

// ProjectMember grants project access to exactly one of a user or a user group.
type ProjectMember struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ProjectID   uint       `gorm:"index;not null" json:"project_id"`
	UserID      *uint      `gorm:"index" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	UserGroupID *uint      `gorm:"index" json:"user_group_id"`
	UserGroup   *UserGroup `gorm:"foreignKey:UserGroupID" json:"user_group,omitempty"`
	AddedBy     uint       `json:"added_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ProjectMember) TableName() string { return "project_members" }
