package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/pillarbox/internal/models"
)

// MediaItemRepository handles database operations for media items
type MediaItemRepository struct {
	db *DB
}

// NewMediaItemRepository creates a new media item repository
func NewMediaItemRepository(db *DB) *MediaItemRepository {
	return &MediaItemRepository{db: db}
}

// Create inserts a new media item into the database
func (r *MediaItemRepository) Create(ctx context.Context, item *models.MediaItem) error {
	result := r.db.WithContext(ctx).Omit("TimeRanges", "Labels").Create(item)
	if result.Error != nil {
		return fmt.Errorf("failed to create media item: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a media item by its UUID
func (r *MediaItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaItem, error) {
	var item models.MediaItem
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&item)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &item, nil
}

// GetByURN retrieves a media item by the identifier hosts play it with
func (r *MediaItemRepository) GetByURN(ctx context.Context, urn string) (*models.MediaItem, error) {
	var item models.MediaItem
	result := r.db.WithContext(ctx).Where("urn = ?", urn).First(&item)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &item, nil
}

// List retrieves media items ordered by URN with pagination
func (r *MediaItemRepository) List(ctx context.Context, limit, offset int) ([]*models.MediaItem, error) {
	var items []*models.MediaItem
	query := r.db.WithContext(ctx).Order("urn ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list media items: %w", MapGormError(result.Error))
	}
	return items, nil
}

// Count returns the total number of media items
func (r *MediaItemRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.MediaItem{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count media items: %w", MapGormError(result.Error))
	}
	return count, nil
}

// Delete removes a media item; its time ranges and labels cascade
func (r *MediaItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.MediaItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete media item: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
