package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brightclass/identity-go/internal/domain/identity"
)

// subscriberBuffer bounds each subscriber channel. A stalled controller
// drops deliveries rather than blocking the fan-out for everyone else.
const subscriberBuffer = 16

// EventBroadcaster fans a provider's single auth event stream out to every
// subscribed controller. The provider emits one stream per process; each
// client's controller needs its own copy of every event, so consuming the
// stream directly would hand each event to exactly one arbitrary consumer.
type EventBroadcaster struct {
	source <-chan identity.AuthEvent
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]chan identity.AuthEvent
	nextID uint64
	closed bool
}

// NewEventBroadcaster wraps the provider event stream. Call Run to start
// delivery.
func NewEventBroadcaster(source <-chan identity.AuthEvent, logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		source: source,
		logger: logger,
		subs:   make(map[uint64]chan identity.AuthEvent),
	}
}

// Subscribe registers a delivery channel and returns it with a cancel func.
// The channel is closed on cancel or when the broadcaster shuts down. A
// subscription taken after shutdown is already closed.
func (b *EventBroadcaster) Subscribe() (<-chan identity.AuthEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan identity.AuthEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Run delivers source events to every subscriber until ctx is canceled or
// the source closes, then closes all subscriber channels.
func (b *EventBroadcaster) Run(ctx context.Context) {
	defer b.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.source:
			if !ok {
				return
			}
			b.broadcast(ctx, ev)
		}
	}
}

func (b *EventBroadcaster) broadcast(ctx context.Context, ev identity.AuthEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.WarnContext(ctx, "auth event dropped for stalled subscriber",
				"event", ev.Type, "client_id", ev.ClientID)
		}
	}
}

func (b *EventBroadcaster) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
