package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stwalsh4118/pillarbox/internal/logger"
)

// Handler receives monitoring messages on the player looper. Implementations
// must not block; slow sinks queue the message and return.
type Handler interface {
	Handle(msg Message)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(msg Message)

// Handle calls f(msg)
func (f HandlerFunc) Handle(msg Message) {
	f(msg)
}

// MultiHandler fans a message out to several handlers in order
type MultiHandler []Handler

// Handle forwards the message to every handler
func (m MultiHandler) Handle(msg Message) {
	for _, h := range m {
		if h != nil {
			h.Handle(msg)
		}
	}
}

// LogHandler writes every message to the global logger
type LogHandler struct{}

// Handle logs the message
func (LogHandler) Handle(msg Message) {
	event := logger.Log.Info()
	if msg.EventName == EventHeartbeat {
		event = logger.Log.Debug()
	}
	if msg.EventName == EventError && msg.Data.Error != nil {
		event = logger.Log.Warn().
			Str("error_type", msg.Data.Error.Type).
			Str("error", msg.Data.Error.Message)
	}

	event.
		Str("component", "monitoring").
		Str("session_id", msg.SessionID).
		Str("event", string(msg.EventName)).
		Str("media_item_id", msg.Data.MediaItemID).
		Int64("position_ms", msg.Data.PositionMs).
		Msg("Monitoring event")
}

// MemoryHandler keeps every message in memory
type MemoryHandler struct {
	messages []Message
	mu       sync.Mutex
}

// NewMemoryHandler creates an empty memory handler
func NewMemoryHandler() *MemoryHandler {
	return &MemoryHandler{}
}

// Handle appends the message
func (h *MemoryHandler) Handle(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

// Messages returns a copy of the received messages
func (h *MemoryHandler) Messages() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// EventNames returns the received event names in order
func (h *MemoryHandler) EventNames() []EventName {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]EventName, len(h.messages))
	for i, msg := range h.messages {
		names[i] = msg.EventName
	}
	return names
}

// Reset drops every received message
func (h *MemoryHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// MetricsHandler counts messages per event name before forwarding them
type MetricsHandler struct {
	next    Handler
	counter *prometheus.CounterVec
}

// NewMetricsHandler wraps next. The counter must have a single "event" label.
func NewMetricsHandler(next Handler, counter *prometheus.CounterVec) *MetricsHandler {
	return &MetricsHandler{next: next, counter: counter}
}

// Handle increments the counter and forwards the message
func (h *MetricsHandler) Handle(msg Message) {
	if h.counter != nil {
		h.counter.WithLabelValues(string(msg.EventName)).Inc()
	}
	if h.next != nil {
		h.next.Handle(msg)
	}
}
