package models

import "github.com/google/uuid"

// Analytics vendors
const (
	VendorCommandersAct = "commandersact"
	VendorComScore      = "comscore"
)

// AnalyticsLabel is one vendor label attached to a media item
type AnalyticsLabel struct {
	ID          uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	MediaItemID uuid.UUID `json:"media_item_id" gorm:"type:text;not null;index;column:media_item_id"`
	Vendor      string    `json:"vendor" gorm:"type:text;not null;column:vendor" validate:"oneof=commandersact comscore"`
	Key         string    `json:"key" gorm:"type:text;not null;column:key"`
	Value       string    `json:"value" gorm:"type:text;not null;column:value"`
}

// TableName overrides the gorm default
func (AnalyticsLabel) TableName() string {
	return "analytics_labels"
}
