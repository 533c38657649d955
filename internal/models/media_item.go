package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaItem represents a playable catalog entry
type MediaItem struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	URN        string    `json:"urn" gorm:"type:text;not null;uniqueIndex;column:urn" validate:"required"`
	Title      string    `json:"title" gorm:"type:text;not null;column:title"`
	URI        string    `json:"uri" gorm:"type:text;column:uri"`
	DurationMs int64     `json:"duration_ms" gorm:"type:integer;not null;default:0;column:duration_ms" validate:"gte=0"`
	Live       bool      `json:"live" gorm:"type:boolean;not null;default:false;column:live"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`

	TimeRanges []TimeRangeRecord `json:"time_ranges,omitempty" gorm:"foreignKey:MediaItemID;constraint:OnDelete:CASCADE"`
	Labels     []AnalyticsLabel  `json:"labels,omitempty" gorm:"foreignKey:MediaItemID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the gorm default
func (MediaItem) TableName() string {
	return "media_items"
}

// NewMediaItem creates a new MediaItem with generated UUID and timestamp
func NewMediaItem(urn, title string, durationMs int64) *MediaItem {
	return &MediaItem{
		ID:         uuid.New(),
		URN:        urn,
		Title:      title,
		DurationMs: durationMs,
		CreatedAt:  time.Now().UTC(),
	}
}
