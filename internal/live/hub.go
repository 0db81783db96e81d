// ABOUTME: In-memory fan-out of change notifications keyed by topic
// ABOUTME: Used by storage backends to tell live queries that a table changed

package live

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Change describes one committed mutation on a topic (usually a table name).
type Change struct {
	Topic string
	// Seq increases by one for every change notified on the hub.
	Seq uint64
	// Rows is the number of rows the mutation affected.
	Rows int64
}

// Observer is called synchronously by Notify for every change on its topic.
// Observers must not block and must not mutate the data they observe.
type Observer func(Change)

// Hub provides in-memory pub/sub of Changes. Unlike a message broadcaster it
// never drops: Notify calls every observer of the topic before returning, so the
// caller controls ordering by serializing its own Notify calls.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]map[string]Observer // topic -> watchID -> observer
	seq       uint64
	closed    bool
	logger    *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers: make(map[string]map[string]Observer),
		logger:    logger.With("component", "hub"),
	}
}

// Watch registers an observer for the given topic and returns a watch ID for
// later removal with Unwatch. Watching a closed hub returns an empty ID and the
// observer is never called.
func (h *Hub) Watch(topic string, fn Observer) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ""
	}

	id := uuid.New().String()
	if _, ok := h.observers[topic]; !ok {
		h.observers[topic] = make(map[string]Observer)
	}
	h.observers[topic][id] = fn

	h.logger.Debug("observer added", "topic", topic, "watch_id", id)
	return id
}

// Unwatch removes an observer. Unknown IDs are ignored.
func (h *Hub) Unwatch(topic, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs, ok := h.observers[topic]
	if !ok {
		return
	}
	if _, exists := obs[id]; !exists {
		return
	}

	delete(obs, id)

	// Clean up empty topic entries
	if len(obs) == 0 {
		delete(h.observers, topic)
	}

	h.logger.Debug("observer removed", "topic", topic, "watch_id", id)
}

// Notify delivers a change on topic to every current observer and returns the
// change that was sent.
func (h *Hub) Notify(topic string, rows int64) Change {
	h.mu.Lock()
	h.seq++
	change := Change{Topic: topic, Seq: h.seq, Rows: rows}

	// Copy targets under lock to avoid holding it while observers run
	targets := make([]Observer, 0, len(h.observers[topic]))
	for _, fn := range h.observers[topic] {
		targets = append(targets, fn)
	}
	h.mu.Unlock()

	for _, fn := range targets {
		fn(change)
	}

	h.logger.Debug("change notified", "topic", topic, "seq", change.Seq, "observers", len(targets))
	return change
}

// Count returns the number of observers registered for topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[topic])
}

// Close drops every observer. Later Watch calls are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.observers {
		delete(h.observers, topic)
	}
	h.closed = true

	h.logger.Debug("hub closed")
}
