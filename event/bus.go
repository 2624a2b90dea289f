package event

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/chrono/id"
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// Bus fans lifecycle events out to subscribers. Publishing never
// blocks: a subscriber whose buffer is full loses the event, and the
// drop is counted. Safe for concurrent use.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool

	bufferSize int

	totalPublished atomic.Int64
	totalDropped   atomic.Int64
}

type subscriber struct {
	id id.SubscriberID
	ch chan Event
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BusOption {
	return func(b *Bus) { b.bufferSize = size }
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger, opts ...BusOption) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		logger:     logger,
		subs:       make(map[string]*subscriber),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber and returns its event channel
// plus a cancel function. The channel is closed by cancel or by Close.
// Subscribing to a closed bus returns an already-closed channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		id: id.NewSubscriberID(),
		ch: make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[sub.id.String()] = sub
	b.mu.Unlock()

	cancel := func() { b.remove(sub.id.String()) }
	return sub.ch, cancel
}

func (b *Bus) remove(key string) {
	b.mu.Lock()
	sub, ok := b.subs[key]
	if ok {
		delete(b.subs, key)
	}
	b.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	b.totalPublished.Add(1)

	for _, sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			b.totalDropped.Add(1)
			b.logger.Debug("event dropped, subscriber buffer full",
				slog.String("subscriber_id", sub.id.String()),
				slog.String("type", string(evt.Type)),
				slog.String("job_id", evt.JobID.String()),
			)
		}
	}
}

// Close closes every subscriber channel and rejects further publishes.
// Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for key, sub := range b.subs {
		delete(b.subs, key)
		close(sub.ch)
	}
}

// Stats reports bus counters.
type Stats struct {
	Subscribers    int
	TotalPublished int64
	TotalDropped   int64
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	count := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Subscribers:    count,
		TotalPublished: b.totalPublished.Load(),
		TotalDropped:   b.totalDropped.Load(),
	}
}
