package app

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-eval-service/internal/domain"
	"quiz-eval-service/internal/metrics"
)

// Notifier receives pipeline events. Implementations must not block.
type Notifier interface {
	Broadcast(ev domain.Event)
}

// Presence records which observers are connected, typically in a shared store.
type Presence interface {
	Join(id string)
	Leave(id string)
}

const defaultObserverBuffer = 32

// Hub fans live events out to every subscribed observer.
type Hub struct {
	buffer   int
	logger   *zap.Logger
	metrics  *metrics.Metrics
	presence Presence

	mu        sync.Mutex
	observers map[uuid.UUID]chan domain.Event
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithPresence reports observer joins and leaves to p.
func WithPresence(p Presence) HubOption {
	return func(h *Hub) { h.presence = p }
}

// NewHub builds a hub whose observers each buffer up to buffer events.
func NewHub(buffer int, logger *zap.Logger, m *metrics.Metrics, opts ...HubOption) *Hub {
	if buffer <= 0 {
		buffer = defaultObserverBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		buffer:    buffer,
		logger:    logger,
		metrics:   m,
		observers: make(map[uuid.UUID]chan domain.Event),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new observer. The returned channel already holds the
// connected acknowledgement. The caller must invoke cancel to unregister.
func (h *Hub) Subscribe() (uuid.UUID, <-chan domain.Event, func()) {
	id := uuid.New()
	ch := make(chan domain.Event, h.buffer)
	ch <- domain.MessageEvent(domain.EventConnected, "Connected to live updates")

	h.mu.Lock()
	h.observers[id] = ch
	count := len(h.observers)
	h.metrics.SetObservers(count)
	h.mu.Unlock()

	if h.presence != nil {
		h.presence.Join(id.String())
	}
	h.logger.Info("observer connected", zap.Stringer("observer", id), zap.Int("observers", count))

	cancel := func() {
		h.mu.Lock()
		_, ok := h.observers[id]
		if ok {
			delete(h.observers, id)
			close(ch)
		}
		count := len(h.observers)
		h.metrics.SetObservers(count)
		h.mu.Unlock()
		if !ok {
			return
		}
		if h.presence != nil {
			h.presence.Leave(id.String())
		}
		h.logger.Info("observer disconnected", zap.Stringer("observer", id), zap.Int("observers", count))
	}
	return id, ch, cancel
}

// Broadcast queues ev for every current observer. A full observer buffer
// loses its oldest queued event; other observers are unaffected.
func (h *Hub) Broadcast(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.observers {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		h.metrics.RecordDroppedEvent()
		h.logger.Debug("observer buffer full, dropped oldest event",
			zap.Stringer("observer", id), zap.String("type", string(ev.Type)))
		select {
		case ch <- ev:
		default:
		}
	}
}

// ObserverIDs lists the connected observers.
func (h *Hub) ObserverIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id.String())
	}
	return ids
}

// Len reports the number of connected observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}
