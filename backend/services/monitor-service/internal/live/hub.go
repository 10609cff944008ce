// Package live fans ingestion events out to connected viewers over
// server-sent events and WebSockets.
package live

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Subscribe after Shutdown.
var ErrHubClosed = errors.New("live: hub closed")

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 16

// Hub tracks live subscribers and delivers published events to each of them
// in registration order. Delivery never blocks the publisher: an event that
// does not fit in a subscriber's buffer is dropped for that subscriber only.
type Hub struct {
	mu     sync.RWMutex
	subs   []*Subscription
	closed bool

	bufferSize int
	logger     *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(bufferSize int, logger *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bufferSize: bufferSize,
		logger:     logger.Named("live"),
	}
}

// Subscribe registers a new subscriber. It receives only events published
// after this call returns.
func (h *Hub) Subscribe(transport string) (*Subscription, error) {
	sub := &Subscription{
		id:        uuid.NewString(),
		transport: transport,
		frames:    make(chan Frame, h.bufferSize),
		done:      make(chan struct{}),
		hub:       h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	subscribersGauge.WithLabelValues(transport).Inc()
	h.logger.Debug("subscriber registered", zap.String("subscriber_id", sub.id), zap.String("transport", transport))
	return sub, nil
}

// Unsubscribe removes sub. Calling it more than once, or after Shutdown, is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	removed := false
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			removed = true
			break
		}
	}
	h.mu.Unlock()

	sub.finish()
	if removed {
		subscribersGauge.WithLabelValues(sub.transport).Dec()
		h.logger.Debug("subscriber removed", zap.String("subscriber_id", sub.id), zap.Uint64("dropped", sub.Dropped()))
	}
}

// Publish serializes payload once and queues it for every subscriber. Encoding
// failures are logged and the event is discarded.
func (h *Hub) Publish(event EventType, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode live event", zap.String("event", string(event)), zap.Error(err))
		return
	}
	frame := Frame{Event: event, Data: data}
	publishedCounter.WithLabelValues(string(event)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.frames <- frame:
		default:
			sub.dropped.Add(1)
			droppedCounter.WithLabelValues(sub.transport).Inc()
			h.logger.Warn("dropping live event, subscriber buffer full",
				zap.String("subscriber_id", sub.id),
				zap.String("event", string(event)))
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Shutdown ends every subscription and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()

	for _, sub := range subs {
		sub.finish()
		subscribersGauge.WithLabelValues(sub.transport).Dec()
	}
	h.logger.Info("live hub stopped", zap.Int("subscribers", len(subs)))
}

// Subscription is one registered viewer. Transports drain Frames until Done
// is closed.
type Subscription struct {
	id        string
	transport string
	frames    chan Frame
	done      chan struct{}
	once      sync.Once
	dropped   atomic.Uint64
	hub       *Hub
}

func (s *Subscription) ID() string { return s.id }

// Frames yields queued events. The channel is never closed; select on Done.
func (s *Subscription) Frames() <-chan Frame { return s.frames }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped returns how many events did not fit in the buffer.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close unsubscribes from the hub.
func (s *Subscription) Close() { s.hub.Unsubscribe(s) }

func (s *Subscription) finish() {
	s.once.Do(func() { close(s.done) })
}
