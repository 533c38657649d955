package asset

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// CatalogStore persists catalog entries. db.CatalogStore implements it.
type CatalogStore interface {
	GetEntry(ctx context.Context, id string) (*CatalogEntry, error)
	SaveEntry(ctx context.Context, entry CatalogEntry) error
}

// StoreLoader serves assets from a persistent catalog store
type StoreLoader struct {
	store CatalogStore
}

// NewStoreLoader creates a loader backed by the store
func NewStoreLoader(store CatalogStore) *StoreLoader {
	return &StoreLoader{store: store}
}

// Load fetches the catalog entry for the media item and converts it to an asset
func (l *StoreLoader) Load(ctx context.Context, item MediaItem) (*Asset, error) {
	entry, err := l.store.GetEntry(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", item.ID, err)
	}
	return entry.Asset(), nil
}

// ImportCatalog saves every catalog entry into the store and returns how many were written
func ImportCatalog(ctx context.Context, catalog *Catalog, store CatalogStore) (int, error) {
	if catalog == nil {
		return 0, nil
	}

	imported := 0
	for _, entry := range catalog.Media {
		if err := store.SaveEntry(ctx, entry); err != nil {
			return imported, fmt.Errorf("failed to import %s: %w", entry.ID, err)
		}
		imported++
	}

	logger.Log.Info().
		Int("imported", imported).
		Msg("Catalog imported")

	return imported, nil
}
