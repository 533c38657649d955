package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/pillarbox/internal/models"
	"gorm.io/gorm"
)

// TimeRangeRepository handles database operations for time ranges
type TimeRangeRepository struct {
	db *DB
}

// NewTimeRangeRepository creates a new time range repository
func NewTimeRangeRepository(db *DB) *TimeRangeRepository {
	return &TimeRangeRepository{db: db}
}

// ReplaceForMediaItem swaps every time range of the media item in one transaction
func (r *TimeRangeRepository) ReplaceForMediaItem(ctx context.Context, mediaItemID uuid.UUID, records []models.TimeRangeRecord) error {
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return replaceTimeRanges(tx, mediaItemID, records)
	})
}

// ListByMediaItem returns the time ranges of a media item grouped by kind in list order
func (r *TimeRangeRepository) ListByMediaItem(ctx context.Context, mediaItemID uuid.UUID) ([]models.TimeRangeRecord, error) {
	var records []models.TimeRangeRecord
	result := r.db.WithContext(ctx).
		Where("media_item_id = ?", mediaItemID.String()).
		Order("kind ASC, position ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list time ranges: %w", MapGormError(result.Error))
	}
	return records, nil
}

func replaceTimeRanges(tx *gorm.DB, mediaItemID uuid.UUID, records []models.TimeRangeRecord) error {
	result := tx.Where("media_item_id = ?", mediaItemID.String()).Delete(&models.TimeRangeRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete time ranges: %w", MapGormError(result.Error))
	}
	if len(records) == 0 {
		return nil
	}

	for i := range records {
		if records[i].ID == uuid.Nil {
			records[i].ID = uuid.New()
		}
		records[i].MediaItemID = mediaItemID
		if !records[i].Kind.IsValid() {
			return fmt.Errorf("%w: time range kind %q", ErrInvalidInput, records[i].Kind)
		}
	}

	result = tx.Create(&records)
	if result.Error != nil {
		return fmt.Errorf("failed to create time ranges: %w", MapGormError(result.Error))
	}
	return nil
}
