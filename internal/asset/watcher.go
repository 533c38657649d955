package asset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

const (
	defaultWatchPollInterval = 5 * time.Second
	watchDebounceWindow      = 250 * time.Millisecond
	watchImportTimeout       = 30 * time.Second
)

// ErrWatcherStopped is returned when starting a stopped catalog watcher
var ErrWatcherStopped = errors.New("catalog watcher has been stopped")

// CatalogWatcher re-imports a YAML catalog file into a store whenever the
// file changes. It uses fsnotify and falls back to polling the modification
// time when the file system cannot be watched.
type CatalogWatcher struct {
	path         string
	store        CatalogStore
	pollInterval time.Duration

	fsWatcher *fsnotify.Watcher
	stopChan  chan struct{}
	watchDone chan struct{}
	reloaded  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	log     zerolog.Logger
}

// NewCatalogWatcher creates a watcher for the catalog at path
func NewCatalogWatcher(path string, store CatalogStore, pollInterval time.Duration) *CatalogWatcher {
	if pollInterval <= 0 {
		pollInterval = defaultWatchPollInterval
	}
	return &CatalogWatcher{
		path:         filepath.Clean(path),
		store:        store,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
		reloaded:     make(chan struct{}, 1),
		log:          logger.Component("catalog_watcher"),
	}
}

// Start begins watching. The catalog is not imported until it changes.
func (w *CatalogWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWatcherStopped
	}
	if w.started {
		return nil
	}
	w.started = true

	// Watch the directory so editors that replace the file are seen
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to create fsnotify watcher, falling back to polling")
	} else if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("Failed to watch catalog directory, falling back to polling")
		_ = watcher.Close()
	} else {
		w.fsWatcher = watcher
	}

	go w.run()

	w.log.Info().
		Str("path", w.path).
		Bool("using_fsnotify", w.fsWatcher != nil).
		Msg("Catalog watcher started")
	return nil
}

// Stop ends the watch loop
func (w *CatalogWatcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	close(w.stopChan)
	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			w.log.Warn().Err(err).Msg("Error closing fsnotify watcher")
		}
	}
	if started {
		<-w.watchDone
	}
}

// Reloaded receives a value after each successful re-import
func (w *CatalogWatcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

func (w *CatalogWatcher) run() {
	defer close(w.watchDone)

	if w.fsWatcher != nil {
		w.watch()
	} else {
		w.poll()
	}
}

// watch debounces fsnotify events for the catalog file
func (w *CatalogWatcher) watch() {
	var debounce <-chan time.Time

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				debounce = time.After(watchDebounceWindow)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fsnotify error, continuing")
		case <-debounce:
			debounce = nil
			w.reload()
		}
	}
}

// poll compares the modification time of the catalog file
func (w *CatalogWatcher) poll() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var lastMod time.Time
	if info, err := os.Stat(w.path); err == nil {
		lastMod = info.ModTime()
	}

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			if err != nil {
				continue
			}
			if info.ModTime().After(lastMod) {
				lastMod = info.ModTime()
				w.reload()
			}
		}
	}
}

// reload parses and imports the catalog. A broken file keeps the stored catalog.
func (w *CatalogWatcher) reload() {
	catalog, err := LoadCatalogFile(w.path)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("Failed to reload catalog")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), watchImportTimeout)
	defer cancel()

	imported, err := ImportCatalog(ctx, catalog, w.store)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("Failed to import reloaded catalog")
		return
	}

	w.log.Info().Str("path", w.path).Int("media_items", imported).Msg("Catalog reloaded")

	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
