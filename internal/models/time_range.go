package models

import "github.com/google/uuid"

// TimeRangeKind discriminates the rows of the time_ranges table
type TimeRangeKind string

// Time range kinds
const (
	TimeRangeBlocked TimeRangeKind = "blocked"
	TimeRangeChapter TimeRangeKind = "chapter"
	TimeRangeOpening TimeRangeKind = "opening"
	TimeRangeClosing TimeRangeKind = "closing"
)

// IsValid checks if the kind is a known value
func (k TimeRangeKind) IsValid() bool {
	switch k {
	case TimeRangeBlocked, TimeRangeChapter, TimeRangeOpening, TimeRangeClosing:
		return true
	default:
		return false
	}
}

// TimeRangeRecord is one persisted blocked range, chapter or credit.
// Position keeps the list order of the asset metadata.
type TimeRangeRecord struct {
	ID          uuid.UUID     `json:"id" gorm:"type:text;primaryKey;column:id"`
	MediaItemID uuid.UUID     `json:"media_item_id" gorm:"type:text;not null;index;column:media_item_id"`
	Kind        TimeRangeKind `json:"kind" gorm:"type:text;not null;column:kind" validate:"oneof=blocked chapter opening closing"`
	Position    int           `json:"position" gorm:"type:integer;not null;column:position"`
	StartMs     int64         `json:"start_ms" gorm:"type:integer;not null;column:start_ms"`
	EndMs       int64         `json:"end_ms" gorm:"type:integer;not null;column:end_ms"`
	Reason      *string       `json:"reason,omitempty" gorm:"type:text;column:reason"`
	ExternalID  *string       `json:"external_id,omitempty" gorm:"type:text;column:external_id"`
	Title       *string       `json:"title,omitempty" gorm:"type:text;column:title"`
	Description *string       `json:"description,omitempty" gorm:"type:text;column:description"`
	ArtworkURI  *string       `json:"artwork_uri,omitempty" gorm:"type:text;column:artwork_uri"`
}

// TableName overrides the gorm default
func (TimeRangeRecord) TableName() string {
	return "time_ranges"
}
