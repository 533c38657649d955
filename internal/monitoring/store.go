package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/pillarbox/internal/logger"
	"github.com/stwalsh4118/pillarbox/internal/models"
)

const (
	defaultQueueSize  = 256
	storeWriteTimeout = 5 * time.Second
)

// ErrStoreStopped is returned when starting a stopped store handler
var ErrStoreStopped = errors.New("store handler stopped")

// EventWriter persists monitoring events. db.MonitoringEventRepository implements it.
type EventWriter interface {
	Create(ctx context.Context, event *models.MonitoringEvent) error
}

// StoreHandler queues messages and writes them from a background goroutine,
// so the player looper never waits on the database. Messages arriving while
// the queue is full are dropped and counted.
type StoreHandler struct {
	writer  EventWriter
	queue   chan Message
	closed  bool
	started bool
	mu      sync.RWMutex
	wg      sync.WaitGroup
	dropped atomic.Int64
	written atomic.Int64
	log     zerolog.Logger
}

// NewStoreHandler creates a store handler with a bounded queue
func NewStoreHandler(writer EventWriter, queueSize int) *StoreHandler {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &StoreHandler{
		writer: writer,
		queue:  make(chan Message, queueSize),
		log:    logger.Component("monitoring_store"),
	}
}

// Start launches the writer goroutine. It runs until Stop.
func (h *StoreHandler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrStoreStopped
	}
	if h.started {
		return nil
	}
	h.started = true

	h.wg.Add(1)
	go h.run()
	return nil
}

// Handle queues the message without blocking
func (h *StoreHandler) Handle(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	select {
	case h.queue <- msg:
	default:
		h.dropped.Add(1)
		h.log.Warn().
			Str("session_id", msg.SessionID).
			Str("event", string(msg.EventName)).
			Msg("Monitoring queue full, dropping event")
	}
}

// Stop closes the queue and waits for queued messages to be written
func (h *StoreHandler) Stop() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.queue)
	h.mu.Unlock()

	h.wg.Wait()
	h.log.Info().
		Int64("written", h.written.Load()).
		Int64("dropped", h.dropped.Load()).
		Msg("Monitoring store stopped")
}

// Dropped returns how many messages were dropped on a full queue
func (h *StoreHandler) Dropped() int64 {
	return h.dropped.Load()
}

// Written returns how many messages were persisted
func (h *StoreHandler) Written() int64 {
	return h.written.Load()
}

// run writes queued messages until the queue is closed
func (h *StoreHandler) run() {
	defer h.wg.Done()
	for msg := range h.queue {
		event, err := ToEvent(msg)
		if err != nil {
			h.log.Error().Err(err).Str("session_id", msg.SessionID).Msg("Failed to encode monitoring event")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		err = h.writer.Create(ctx, event)
		cancel()
		if err != nil {
			h.log.Error().Err(err).Str("session_id", msg.SessionID).Msg("Failed to store monitoring event")
			continue
		}
		h.written.Add(1)
	}
}

// ToEvent converts a message into its persisted form
func ToEvent(msg Message) (*models.MonitoringEvent, error) {
	payload, err := json.Marshal(msg.Data)
	if err != nil {
		return nil, err
	}
	return &models.MonitoringEvent{
		ID:          uuid.New(),
		SessionID:   msg.SessionID,
		MediaItemID: msg.Data.MediaItemID,
		EventName:   string(msg.EventName),
		PositionMs:  msg.Data.PositionMs,
		Payload:     string(payload),
		CreatedAt:   msg.Timestamp.UTC(),
	}, nil
}
