package models

import "time"

type TimeEntry struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RelatedEntityType string    `gorm:"size:20;not null;index:idx_time_entry_entity" json:"related_entity_type"`
	RelatedEntityID   uint      `gorm:"not null;index:idx_time_entry_entity" json:"related_entity_id"`
	UserID            uint      `gorm:"index;not null" json:"user_id"`
	DurationMinutes   int       `gorm:"not null" json:"duration_minutes"`
	Date              time.Time `gorm:"index;not null" json:"date"`
	Description       string    `gorm:"size:1000" json:"description"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (TimeEntry) TableName() string { return "time_entries" }
