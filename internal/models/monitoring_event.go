package models

import (
	"time"

	"github.com/google/uuid"
)

// MonitoringEvent is a persisted monitoring message.
// Payload holds the JSON encoded message data.
type MonitoringEvent struct {
	ID          uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	SessionID   string    `json:"session_id" gorm:"type:text;not null;index;column:session_id"`
	MediaItemID string    `json:"media_item_id" gorm:"type:text;not null;column:media_item_id"`
	EventName   string    `json:"event_name" gorm:"type:text;not null;column:event_name"`
	PositionMs  int64     `json:"position_ms" gorm:"type:integer;not null;column:position_ms"`
	Payload     string    `json:"payload" gorm:"type:text;not null;column:payload"`
	CreatedAt   time.Time `json:"created_at" gorm:"type:datetime;not null;column:created_at"`
}

// TableName overrides the gorm default
func (MonitoringEvent) TableName() string {
	return "monitoring_events"
}
