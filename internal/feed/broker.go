// Package feed fans dashboard state changes out to live browser sessions.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Event is the notification pushed to subscribers after each applied poll.
type Event struct {
	Version     uint64       `json:"version"`
	Status      state.Status `json:"status"`
	View        state.View   `json:"view"`
	Entries     int          `json:"entries"`
	TotalSpend  float64      `json:"total_spend"`
	LastError   string       `json:"last_error,omitempty"`
	PublishedAt time.Time    `json:"published_at"`
}

// EventFromSnapshot summarizes a snapshot as an Event.
func EventFromSnapshot(s state.Snapshot) Event {
	return Event{
		Version:     s.Version,
		Status:      s.Status,
		View:        s.View(),
		Entries:     len(s.Entries),
		TotalSpend:  s.Summary.TotalSpend,
		LastError:   s.LastError,
		PublishedAt: time.Now().UTC(),
	}
}

// Subscriber represents one live session.
type Subscriber struct {
	ID        string
	Ch        chan Event
	CreatedAt time.Time
}

// Broker manages subscriptions and publishing.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	buffer      int
	closed      bool
	logger      *slog.Logger
}

// NewBroker creates a new broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subscribers: make(map[string]*Subscriber),
		buffer:      DefaultBuffer,
		logger:      logger.With("component", "feed"),
	}
}

// Subscribe registers a new subscriber. The returned subscriber's channel is
// closed by Unsubscribe or Close.
func (b *Broker) Subscribe(ctx context.Context) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:        uuid.NewString(),
		Ch:        make(chan Event, b.buffer),
		CreatedAt: time.Now(),
	}
	if b.closed {
		close(sub.Ch)
		return sub
	}

	b.subscribers[sub.ID] = sub
	b.logger.Debug("subscriber added", "subscriber_id", sub.ID, "subscribers", len(b.subscribers))

	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[sub.ID]; exists {
		close(sub.Ch)
		delete(b.subscribers, sub.ID)
		b.logger.Debug("subscriber removed", "subscriber_id", sub.ID)
	}
}

// Publish sends ev to every subscriber without blocking. A subscriber whose
// buffer is full loses its oldest pending event.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub.Ch <- ev:
			continue
		default:
		}

		select {
		case <-sub.Ch:
		default:
		}
		select {
		case sub.Ch <- ev:
		default:
		}
		b.logger.Warn("subscriber channel full, dropped oldest event",
			"subscriber_id", sub.ID,
			"version", ev.Version,
		)
	}
}

// PublishSnapshot is a state.Listener that publishes each applied snapshot.
func (b *Broker) PublishSnapshot(s state.Snapshot) {
	b.Publish(EventFromSnapshot(s))
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel and rejects new subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.Ch)
		delete(b.subscribers, id)
	}
	b.logger.Info("feed broker closed")
}
