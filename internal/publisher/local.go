package publisher

import (
	"context"
	"fmt"
	"sync"

	"submission_service/internal/domain"
)

type Handler func(ctx context.Context, event domain.Event) error

// LocalBus delivers events in-process on the submission.sync.* keys.
// Handlers run synchronously in subscription order.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]Handler)}
}

func (b *LocalBus) Subscribe(routingKey string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[routingKey] = append(b.handlers[routingKey], h)
}

// SubscribeAll registers h for every event kind.
func (b *LocalBus) SubscribeAll(h Handler) {
	for _, kind := range domain.AllEventKinds() {
		b.Subscribe(domain.SyncRoutingKey(kind), h)
	}
}

func (b *LocalBus) Publish(ctx context.Context, event domain.Event) error {
	routingKey := domain.SyncRoutingKey(event.Kind())
	if routingKey == "" {
		return fmt.Errorf("%w: no routing key for kind %q", ErrPublishFailed, event.Kind())
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[routingKey]))
	copy(handlers, b.handlers[routingKey])
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrPublishFailed, routingKey, err)
		}
	}
	return nil
}
