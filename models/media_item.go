package models

import "time"

// MediaStatus is the lifecycle state of a media item.
type MediaStatus string

const (
	StatusDraft      MediaStatus = "DRAFT"
	StatusReady      MediaStatus = "READY"
	StatusArchived   MediaStatus = "ARCHIVED"
	StatusProcessing MediaStatus = "PROCESSING"
	StatusFailed     MediaStatus = "FAILED"
)

// ParseMediaStatus accepts exactly the five known values.
func ParseMediaStatus(s string) (MediaStatus, bool) {
	switch st := MediaStatus(s); st {
	case StatusDraft, StatusReady, StatusArchived, StatusProcessing, StatusFailed:
		return st, true
	}
	return "", false
}

// Collection names the library a media item belongs to.
type Collection string

const (
	CollectionAds   Collection = "ads"
	CollectionMusic Collection = "music"
	CollectionVoice Collection = "voice"
)

// MediaItem records an uploaded audio file stored under the media root.
// Ads, music and voice recordings share this schema.
type MediaItem struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	Collection      Collection  `gorm:"size:16;index;not null" json:"collection"`
	Title           string      `gorm:"size:255;not null" json:"title"`
	URL             string      `gorm:"size:1024;not null" json:"url"`       // public URL like /media/music/...
	FilePath        *string     `gorm:"size:1024" json:"file_path,omitempty"` // absolute filesystem path
	MimeType        *string     `gorm:"size:64" json:"mime_type,omitempty"`
	SizeBytes       *int64      `json:"size_bytes,omitempty"`
	Duration        *float64    `json:"duration,omitempty"`
	Status          MediaStatus `gorm:"size:16;index;not null;default:'DRAFT'" json:"status"`
	OwnerID         uint        `gorm:"index;not null" json:"owner_id"`
	LastBroadcastAt *time.Time  `json:"last_broadcast_at,omitempty"`
	BroadcastCount  int         `gorm:"not null;default:0" json:"broadcast_count"`
	CreatedAt       time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Owner           *User       `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}
