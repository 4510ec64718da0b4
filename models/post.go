package models

import (
	"time"

	"gorm.io/datatypes"
)

// Post represents a news article. New posts are drafts: unpublished and not ready.
type Post struct {
	ID        uint                       `gorm:"primaryKey" json:"id"`
	UserID    uint                       `gorm:"index;not null" json:"user_id"`
	Title     string                     `gorm:"size:255;not null" json:"title"`
	Content   string                     `gorm:"type:text;not null" json:"content"`
	Images    datatypes.JSONSlice[string] `json:"images"` // ordered image URLs
	Slug      string                     `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Published bool                       `gorm:"not null;default:false;index" json:"published"`
	IsReady   bool                       `gorm:"not null;default:false" json:"is_ready"`
	CreatedAt time.Time                  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
	User      *User                      `gorm:"foreignKey:UserID" json:"author,omitempty"`
}
