package db

// Repositories provides access to all database repositories
type Repositories struct {
	MediaItems       *MediaItemRepository
	TimeRanges       *TimeRangeRepository
	Labels           *LabelRepository
	MonitoringEvents *MonitoringEventRepository
	Catalog          *CatalogStore
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		MediaItems:       NewMediaItemRepository(db),
		TimeRanges:       NewTimeRangeRepository(db),
		Labels:           NewLabelRepository(db),
		MonitoringEvents: NewMonitoringEventRepository(db),
		Catalog:          NewCatalogStore(db),
	}
}
