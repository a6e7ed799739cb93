package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Image and character lifecycle states.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ImageUpload is the original photo a character is generated from.
type ImageUpload struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	UserID     *string   `json:"user_id,omitempty" gorm:"size:64;index"`
	AnonID     *string   `json:"anon_id,omitempty" gorm:"size:64;index"`
	FileURL    string    `json:"file_url" gorm:"type:text;not null"`
	FileName   string    `json:"file_name" gorm:"not null"`
	FileSize   int64     `json:"file_size" gorm:"not null;default:0"`
	MimeType   string    `json:"mime_type" gorm:"size:64"`
	Status     string    `json:"status" gorm:"size:16;not null;default:'pending'"`
	UploadedAt time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}

func (ImageUpload) TableName() string {
	return "image_uploads"
}

func (u *ImageUpload) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
