package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Character is the generated caricature. Exactly one of UserID and AnonID is set;
// AnonID is a client supplied correlation key and proves nothing about the caller.
type Character struct {
	ID                string                               `json:"id" gorm:"primaryKey;size:36"`
	UserID            *string                              `json:"user_id,omitempty" gorm:"size:64;index"`
	AnonID            *string                              `json:"anon_id,omitempty" gorm:"size:64;index"`
	ImageUploadID     string                               `json:"image_upload_id" gorm:"size:36;index"`
	OriginalImageURL  string                               `json:"original_image_url" gorm:"type:text;not null"`
	GeneratedImageURL *string                              `json:"generated_image_url"`
	GenerationParams  datatypes.JSONType[GenerationParams] `json:"generation_params"`
	OGTitle           string                               `json:"og_title"`
	OGDescription     string                               `json:"og_description" gorm:"type:text"`
	Public            bool                                 `json:"public" gorm:"not null;default:false"`
	ViewsCount        int64                                `json:"views_count" gorm:"not null;default:0"`
	ShortCode         *string                              `json:"short_code,omitempty" gorm:"size:16;index"`
	CreatedAt         time.Time                            `json:"created_at"`
	UpdatedAt         time.Time                            `json:"updated_at"`
}

func (Character) TableName() string {
	return "characters"
}

func (c *Character) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Params returns a copy of the stored generation parameters.
func (c *Character) Params() GenerationParams {
	return c.GenerationParams.Data()
}

// Status is the generation status recorded in the params.
func (c *Character) Status() string {
	return c.Params().Status
}

// OwnedByUser reports whether the character belongs to a verified user.
func (c *Character) OwnedByUser() bool {
	return c.UserID != nil && *c.UserID != ""
}

// ManageableBy reports whether a verified user may retry or share the
// character. Anonymous characters are manageable by anyone holding the id.
func (c *Character) ManageableBy(userID string) bool {
	if !c.OwnedByUser() {
		return true
	}
	return userID != "" && *c.UserID == userID
}

// VisibleTo reports whether the character can be viewed by userID.
func (c *Character) VisibleTo(userID string) bool {
	return c.Public || (c.OwnedByUser() && userID != "" && *c.UserID == userID)
}
