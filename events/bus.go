package events

import (
	"sync"
	"time"
)

// Subscription represents an active Records.Subscribe listener.
type Subscription struct {
	id      string
	ch      chan *Event
	filters []Filter
	cancel  chan struct{}
}

// Bus manages event distribution to subscribers with a thread-safe
// pub/sub mechanism and per-subscription filtering.
type Bus struct {
	mu                sync.RWMutex
	subscribers       map[string]*Subscription
	subscriberBufSize int
	metrics           Metrics
}

// NewBus creates a new event bus. bufSize bounds how many undelivered
// events a slow subscriber may queue before events are dropped for it.
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}

	return &Bus{
		subscribers:       make(map[string]*Subscription),
		subscriberBufSize: bufSize,
	}
}

// Publish broadcasts an event to every subscriber whose filters match.
// Malformed events are rejected and logged, never delivered.
func (b *Bus) Publish(event *Event) {
	if err := event.Validate(); err != nil {
		logger.Error("invalid event rejected", "error", err)

		return
	}

	if event.ID == "" {
		event.ID = newEventID()
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.metrics.PublishedTotal.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var delivered, dropped uint64

	for _, sub := range b.subscribers {
		if !MatchesAny(event, sub.filters) {
			continue
		}

		select {
		case sub.ch <- event:
			delivered++
		case <-sub.cancel:
		default:
			dropped++

			logger.Warn("dropped event for slow consumer",
				"subscription_id", sub.id, "event_kind", event.Kind, "event_id", event.ID)
		}
	}

	b.metrics.DeliveredTotal.Add(delivered)

	if dropped > 0 {
		b.metrics.DroppedTotal.Add(dropped)
	}
}

// Subscribe registers filters and returns a subscription ID plus a
// receive-only channel of matching events. Callers must call Unsubscribe
// when done.
func (b *Bus) Subscribe(filters ...Filter) (string, <-chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := newEventID()
	sub := &Subscription{
		id:      id,
		ch:      make(chan *Event, b.subscriberBufSize),
		filters: filters,
		cancel:  make(chan struct{}),
	}

	b.subscribers[id] = sub
	b.metrics.SubscribersTotal.Add(1)

	logger.Info("new subscription", "subscription_id", id, "filters", len(filters))

	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to
// call multiple times or with an unknown ID.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[id]
	if !ok {
		return
	}

	close(sub.cancel)
	close(sub.ch)
	delete(b.subscribers, id)
	b.metrics.SubscribersTotal.Add(-1)

	logger.Info("subscription removed", "subscription_id", id)
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers)
}

// Snapshot returns a point-in-time copy of the bus's metrics.
func (b *Bus) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		PublishedTotal:   b.metrics.PublishedTotal.Load(),
		DeliveredTotal:   b.metrics.DeliveredTotal.Load(),
		DroppedTotal:     b.metrics.DroppedTotal.Load(),
		SubscribersTotal: b.metrics.SubscribersTotal.Load(),
	}
}
