package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const defaultSubscriptionBufferSize = 256

var _ contract.IPublisher = (*Hub)(nil)

// Hub fans every appended message out to the attached subscriptions.
//
// Each subscription has its own bounded queue and delivery goroutine, so a
// slow or failing consumer only cancels its own stream.
type Hub struct {
	mu         sync.Mutex
	log        *slog.Logger
	store      *MessageStore
	registry   *Registry
	metrics    *observability.Metrics
	bufferSize int
	closed     bool
	wg         sync.WaitGroup
}

// NewHub plugs the hub into the store as its publisher.
func NewHub(log *slog.Logger, store *MessageStore, registry *Registry,
	metrics *observability.Metrics, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriptionBufferSize
	}
	h := &Hub{
		log:        log,
		store:      store,
		registry:   registry,
		metrics:    metrics,
		bufferSize: bufferSize,
	}
	store.setPublisher(h)
	return h
}

// Attach registers a subscription that first replays every message after
// since, then follows the live tail. The subscription ends when ctx is
// done, on Detach, or when it is cancelled.
func (h *Hub) Attach(ctx context.Context, owner string, since domain.Cursor) (*Subscription, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()

	sub := newSubscription(ctx, uuid.NewString(), owner, since, h.bufferSize, h.metrics)
	h.store.WithTail(func(tail domain.MessageID) {
		sub.snapshot = tail
		h.registry.Subscribe(sub)
	})
	h.metrics.SubscriptionOpened()
	h.log.Debug("Subscription attached",
		"subscription", sub.id, "owner", owner, "since", since, "snapshot", sub.snapshot)

	go h.deliver(sub)
	return sub, nil
}

// Detach stops delivery and waits until the hub released the subscription.
// Calling it more than once is harmless.
func (h *Hub) Detach(sub *Subscription) {
	sub.detach()
	<-sub.done
}

// CancelOwner tears down every subscription of owner. Each one receives
// event.Cancelled with reason before its channel closes.
func (h *Hub) CancelOwner(owner string, reason error) int {
	subs := h.registry.GetSubscriptionsForOwner(owner)
	for _, sub := range subs {
		sub.cancel(reason)
	}
	if len(subs) > 0 {
		h.log.Info("Subscriptions cancelled", "owner", owner, "count", len(subs), "reason", reason)
	}
	return len(subs)
}

// Publish offers a freshly stored message to every subscription.
// Called by the store under its lock, in id order.
func (h *Hub) Publish(message domain.Message) {
	h.registry.Range(func(sub *Subscription) {
		sub.offer(message)
	})
}

// Active returns the number of attached subscriptions.
func (h *Hub) Active() int {
	return h.registry.Len()
}

// Close cancels every subscription with errors.ErrHubClosed and waits for
// them to end. Consumers that are still reading get event.Cancelled; once
// ctx is done the remaining ones are detached.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	for _, sub := range h.registry.GetSubscriptions() {
		sub.cancel(errors.ErrHubClosed)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub closed")
		return nil
	case <-ctx.Done():
		for _, sub := range h.registry.GetSubscriptions() {
			sub.detach()
		}
		<-done
		h.log.Warn("Hub closed with consumers still attached", "error", ctx.Err())
		return ctx.Err()
	}
}

// deliver owns the subscription goroutine. A panic only ends this subscription.
func (h *Hub) deliver(sub *Subscription) {
	cause := "detached"
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Delivery panicked", "subscription", sub.id, "panic", r)
			cause = "panic"
		}
		h.release(sub, cause)
	}()

	if reason := sub.run(h.store); reason != nil {
		cause = causeLabel(reason)
		h.log.Info("Subscription cancelled", "subscription", sub.id, "owner", sub.owner, "reason", reason)
	}
}

func (h *Hub) release(sub *Subscription, cause string) {
	h.registry.Unsubscribe(sub)
	sub.detach()
	close(sub.events)
	close(sub.done)
	h.metrics.SubscriptionEnded(cause)
	h.wg.Done()
	h.log.Debug("Subscription released", "subscription", sub.id, "cause", cause, "delivered", sub.delivered)
}

func causeLabel(reason error) string {
	switch {
	case errors.Is(reason, errors.ErrSubscriberTooSlow):
		return "too_slow"
	case errors.Is(reason, errors.ErrSignedOut):
		return "signed_out"
	case errors.Is(reason, errors.ErrHubClosed):
		return "hub_closed"
	case errors.Is(reason, errors.ErrClientClosed):
		return "client_closed"
	case errors.Is(reason, errors.ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "cancelled"
	}
}
