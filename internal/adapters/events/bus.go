// Package events provides the in-process typed event stream.
//
// Collaborators (the HTTP stream surface, tests) register subscribers
// explicitly instead of listening on an ambient broadcast; publishers
// never learn who is subscribed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/logger"
)

// Default bus configuration constants.
const (
	defaultSubscriberBuffer = 64
)

// Kind discriminates event payloads.
type Kind string

// Event kinds.
const (
	KindConnState       Kind = "conn_state"
	KindPromptRequested Kind = "prompt_requested"
	KindRecordCommitted Kind = "record_committed"
	KindRecordRejected  Kind = "record_rejected"
)

// Event is one item on the stream. Only the fields relevant to the kind
// are populated.
type Event struct {
	Kind   Kind          `json:"kind"`
	At     time.Time     `json:"at"`
	State  string        `json:"state,omitempty"`
	Record *model.Record `json:"record,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Bus fans events out to registered subscribers. Publishing never blocks;
// a subscriber that cannot keep up loses events rather than stalling the
// pipeline.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan Event
	buffer int
	closed bool

	logger logger.Logger
}

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithSubscriberBuffer sets the per-subscriber channel capacity.
func WithSubscriberBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger sets a custom logger for the bus.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates a bus with configuration options.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subs:   make(map[string]chan Event),
		buffer: defaultSubscriberBuffer,
		logger: logger.Get().Named("events"),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a new subscriber and returns its id and channel.
// The channel is closed on Unsubscribe or bus Close.
func (b *Bus) Subscribe() (string, <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, b.buffer)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug(ctx, "subscriber lagging; event dropped",
				logger.String("subscriber", id),
				logger.String("kind", string(e.Kind)),
			)
		}
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel and stops the bus.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
