package models

import "time"

type ShortURL struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	ShortCode   string     `json:"short_code" gorm:"size:16;uniqueIndex;not null"`
	OriginalURL string     `json:"original_url" gorm:"type:text;not null"`
	CharacterID *string    `json:"character_id,omitempty" gorm:"size:36;index"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClickCount  int64      `json:"click_count" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ShortURL) TableName() string {
	return "short_urls"
}

// Expired reports whether the link expired strictly before now.
func (s ShortURL) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}
