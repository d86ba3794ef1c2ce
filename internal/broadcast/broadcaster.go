// ABOUTME: In-memory fan-out broadcaster for published posts.
// ABOUTME: Delivers finished posts to live subscribers (SSE clients) without polling.

package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cin-network/cin-gateway/internal/store"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub for finished posts. Delivery is
// best-effort: a slow subscriber loses events rather than stalling the
// pipeline.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *store.Post // subID -> ch
	logger      *slog.Logger
}

// New creates a broadcaster. Pass nil logger for default.
func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan *store.Post),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a listener for published posts. Returns a receive
// channel and a subscription ID. The subscription is automatically cleaned
// up when ctx is cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *store.Post, string) {
	subID := uuid.New().String()
	ch := make(chan *store.Post, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once for the same ID.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	ch, ok := b.subscribers[subID]
	if ok {
		delete(b.subscribers, subID)
	}
	b.mu.Unlock()

	if ok {
		close(ch)
		b.logger.Debug("subscriber removed", "sub_id", subID)
	}
}

// Publish sends a post to all subscribers. Non-blocking: the event is
// dropped, with a log line, for any subscriber whose channel is full.
// A delivery failure is never surfaced to the caller.
func (b *Broadcaster) Publish(post *store.Post) {
	b.mu.RLock()
	targets := make([]chan *store.Post, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- post:
		default:
			b.logger.Warn("dropped post for slow subscriber", "post_id", post.ID)
		}
	}

	if len(targets) > 0 {
		b.logger.Info("post broadcast", "post_id", post.ID, "subscribers", len(targets))
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
