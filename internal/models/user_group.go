package models

import "time"

// UserGroup is a named set of users that can be granted project access as a unit.
type UserGroup struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"size:100;not null" json:"name"`
	Description string            `gorm:"size:500" json:"description"`
	CreatedBy   uint              `gorm:"index" json:"created_by"`
	Members     []UserGroupMember `gorm:"foreignKey:UserGroupID" json:"members,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type UserGroupMember struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserGroupID uint      `gorm:"uniqueIndex:idx_group_user;not null" json:"user_group_id"`
	UserID      uint      `gorm:"uniqueIndex:idx_group_user;not null" json:"user_id"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (UserGroup) TableName() string       { return "user_groups" }
func (UserGroupMember) TableName() string { return "user_group_members" }
