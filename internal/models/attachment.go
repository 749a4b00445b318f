package models

import "time"

// Attachment is a file stored on local disk and linked to a task or subtask.
type Attachment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RelatedEntityType string    `gorm:"size:20;not null;index:idx_attachment_entity" json:"related_entity_type"`
	RelatedEntityID   uint      `gorm:"not null;index:idx_attachment_entity" json:"related_entity_id"`
	OriginalFilename  string    `gorm:"size:255;not null" json:"original_filename"`
	StoragePath       string    `gorm:"size:500;not null" json:"-"`
	MimeType          string    `gorm:"size:100;not null" json:"mime_type"`
	FileSize          int64     `gorm:"not null" json:"file_size"`
	UploadedBy        uint      `gorm:"index;not null" json:"uploaded_by"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Attachment) TableName() string { return "attachments" }
