package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/stwalsh4118/pillarbox/internal/asset"
	"github.com/stwalsh4118/pillarbox/internal/models"
	"github.com/stwalsh4118/pillarbox/internal/timerange"
	"gorm.io/gorm"
)

// CatalogStore persists asset catalog entries across the media_items,
// time_ranges and analytics_labels tables. Entries are keyed by URN.
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a catalog store
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// SaveEntry inserts or replaces an entry together with its time ranges and labels
func (s *CatalogStore) SaveEntry(ctx context.Context, entry asset.CatalogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var item models.MediaItem
		result := tx.Where("urn = ?", entry.ID).First(&item)
		switch {
		case result.Error == nil:
			item.Title = entry.Title
			item.URI = entry.URI
			item.DurationMs = entry.DurationMs
			item.Live = entry.Live
			result = tx.Model(&item).Select("title", "uri", "duration_ms", "live").Updates(&item)
			if result.Error != nil {
				return fmt.Errorf("failed to update media item: %w", MapGormError(result.Error))
			}
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			item = *models.NewMediaItem(entry.ID, entry.Title, entry.DurationMs)
			item.URI = entry.URI
			item.Live = entry.Live
			result = tx.Omit("TimeRanges", "Labels").Create(&item)
			if result.Error != nil {
				return fmt.Errorf("failed to create media item: %w", MapGormError(result.Error))
			}
		default:
			return fmt.Errorf("failed to look up media item: %w", MapGormError(result.Error))
		}

		if err := replaceTimeRanges(tx, item.ID, timeRangeRecords(entry)); err != nil {
			return err
		}
		return replaceLabels(tx, item.ID, labelRecords(entry.Analytics))
	})
}

// GetEntry loads the entry with the given URN
func (s *CatalogStore) GetEntry(ctx context.Context, urn string) (*asset.CatalogEntry, error) {
	var item models.MediaItem
	result := s.db.WithContext(ctx).
		Preload("TimeRanges", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, kind ASC")
		}).
		Preload("Labels").
		Where("urn = ?", urn).
		First(&item)
	if result.Error != nil {
		err := MapGormError(result.Error)
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", asset.ErrAssetNotFound, urn)
		}
		return nil, fmt.Errorf("failed to load catalog entry: %w", err)
	}

	entry := catalogEntry(&item)
	return &entry, nil
}

// ListEntries returns a page of entries without their time ranges or labels
func (s *CatalogStore) ListEntries(ctx context.Context, limit, offset int) ([]asset.CatalogEntry, int64, error) {
	repo := NewMediaItemRepository(s.db)
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(items, func(item *models.MediaItem, _ int) asset.CatalogEntry {
		return catalogEntry(item)
	}), total, nil
}

func timeRangeRecords(entry asset.CatalogEntry) []models.TimeRangeRecord {
	records := make([]models.TimeRangeRecord, 0, len(entry.BlockedTimeRanges)+len(entry.Chapters)+len(entry.Credits))

	for i, b := range entry.BlockedTimeRanges {
		records = append(records, models.TimeRangeRecord{
			Kind:       models.TimeRangeBlocked,
			Position:   i,
			StartMs:    b.StartMs,
			EndMs:      b.EndMs,
			Reason:     optional(string(b.Reason)),
			ExternalID: optional(b.ID),
		})
	}
	for i, c := range entry.Chapters {
		records = append(records, models.TimeRangeRecord{
			Kind:        models.TimeRangeChapter,
			Position:    i,
			StartMs:     c.StartMs,
			EndMs:       c.EndMs,
			ExternalID:  optional(c.ID),
			Title:       optional(c.Title),
			Description: optional(c.Description),
			ArtworkURI:  optional(c.ArtworkURI),
		})
	}
	for i, c := range entry.Credits {
		records = append(records, models.TimeRangeRecord{
			Kind:     models.TimeRangeKind(c.Kind),
			Position: i,
			StartMs:  c.StartMs,
			EndMs:    c.EndMs,
		})
	}
	return records
}

func labelRecords(analytics asset.CatalogAnalytics) []models.AnalyticsLabel {
	labels := make([]models.AnalyticsLabel, 0, len(analytics.CommandersAct)+len(analytics.ComScore))
	for _, key := range lo.Keys(analytics.CommandersAct) {
		labels = append(labels, models.AnalyticsLabel{Vendor: models.VendorCommandersAct, Key: key, Value: analytics.CommandersAct[key]})
	}
	for _, key := range lo.Keys(analytics.ComScore) {
		labels = append(labels, models.AnalyticsLabel{Vendor: models.VendorComScore, Key: key, Value: analytics.ComScore[key]})
	}
	return labels
}

// catalogEntry rebuilds an entry; records must be ordered by position
func catalogEntry(item *models.MediaItem) asset.CatalogEntry {
	entry := asset.CatalogEntry{
		ID:         item.URN,
		Title:      item.Title,
		URI:        item.URI,
		DurationMs: item.DurationMs,
		Live:       item.Live,
	}

	for _, r := range item.TimeRanges {
		switch r.Kind {
		case models.TimeRangeBlocked:
			entry.BlockedTimeRanges = append(entry.BlockedTimeRanges, timerange.BlockedTimeRange{
				StartMs: r.StartMs,
				EndMs:   r.EndMs,
				Reason:  timerange.BlockReason(deref(r.Reason)),
				ID:      deref(r.ExternalID),
			})
		case models.TimeRangeChapter:
			entry.Chapters = append(entry.Chapters, timerange.Chapter{
				ID:          deref(r.ExternalID),
				StartMs:     r.StartMs,
				EndMs:       r.EndMs,
				Title:       deref(r.Title),
				Description: deref(r.Description),
				ArtworkURI:  deref(r.ArtworkURI),
			})
		case models.TimeRangeOpening, models.TimeRangeClosing:
			entry.Credits = append(entry.Credits, timerange.Credit{
				Kind:    timerange.CreditKind(r.Kind),
				StartMs: r.StartMs,
				EndMs:   r.EndMs,
			})
		}
	}

	for _, l := range item.Labels {
		switch l.Vendor {
		case models.VendorCommandersAct:
			if entry.Analytics.CommandersAct == nil {
				entry.Analytics.CommandersAct = make(map[string]string)
			}
			entry.Analytics.CommandersAct[l.Key] = l.Value
		case models.VendorComScore:
			if entry.Analytics.ComScore == nil {
				entry.Analytics.ComScore = make(map[string]string)
			}
			entry.Analytics.ComScore[l.Key] = l.Value
		}
	}
	return entry
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return lo.ToPtr(s)
}

func deref(s *string) string {
	return lo.FromPtr(s)
}

var _ asset.CatalogStore = (*CatalogStore)(nil)
