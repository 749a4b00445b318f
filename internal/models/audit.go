package models

import "time"

// Audit is an append-only change record.
type Audit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntityType string    `gorm:"size:50;index:idx_audit_entity" json:"entity_type"`
	EntityID   uint      `gorm:"index:idx_audit_entity" json:"entity_id"`
	Action     string    `gorm:"size:200;index" json:"action"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	OldValue   string    `gorm:"type:text" json:"old_value"` // JSON
	NewValue   string    `gorm:"type:text" json:"new_value"` // JSON
	IP         string    `gorm:"size:50" json:"ip"`
	UserAgent  string    `gorm:"size:500" json:"user_agent"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (Audit) TableName() string { return "audits" }
