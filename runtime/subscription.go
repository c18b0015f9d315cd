package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"sync"
)

// Subscription is one listener's view of the log.
//
// The replay covers (since, snapshot]; the live queue only ever receives
// ids above snapshot because registration and the snapshot are taken
// under the store lock. Both are written to the same event channel, so
// the consumer sees one gapless ascending stream.
type Subscription struct {
	id       string
	owner    string
	since    domain.MessageID
	snapshot domain.MessageID
	// last id handed to the consumer, owned by the delivery goroutine
	delivered domain.MessageID

	queue  chan domain.Message
	events chan event.ChangeEvent

	ctx    context.Context
	detach context.CancelFunc
	done   chan struct{}

	cancelOnce sync.Once
	cancelled  chan struct{}
	reason     error

	metrics *observability.Metrics
}

func newSubscription(ctx context.Context, id, owner string, since domain.MessageID,
	bufferSize int, metrics *observability.Metrics) *Subscription {
	ctx, detach := context.WithCancel(ctx)
	return &Subscription{
		id:        id,
		owner:     owner,
		since:     since,
		delivered: since,
		queue:     make(chan domain.Message, bufferSize),
		events:    make(chan event.ChangeEvent),
		ctx:       ctx,
		detach:    detach,
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
		metrics:   metrics,
	}
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Owner() string { return s.owner }

// Since is the cursor the subscription was attached with.
func (s *Subscription) Since() domain.MessageID { return s.since }

// Events is closed after the last event. A stream torn down involuntarily
// ends with event.Cancelled; a detached stream just ends.
func (s *Subscription) Events() <-chan event.ChangeEvent { return s.events }

// Done is closed once the hub released the subscription.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// offer never blocks: it runs under the store lock.
func (s *Subscription) offer(message domain.Message) {
	select {
	case <-s.cancelled:
		return
	default:
	}
	select {
	case s.queue <- message:
	default:
		s.cancel(errors.ErrSubscriberTooSlow)
	}
}

// cancel records the first reason only.
func (s *Subscription) cancel(reason error) {
	s.cancelOnce.Do(func() {
		s.reason = reason
		close(s.cancelled)
	})
}

// run delivers the replay then the live tail. It returns the cancellation
// reason, or nil when the consumer detached.
func (s *Subscription) run(store *MessageStore) error {
	for message, err := range store.replayBetween(s.delivered, s.snapshot) {
		if err != nil {
			s.cancel(fmt.Errorf("%w: %w", errors.ErrDeliveryCancelled, err))
			break
		}
		if !s.deliver(message) {
			break
		}
	}

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-s.cancelled:
			return s.notifyCancelled()
		default:
		}

		select {
		case <-s.ctx.Done():
			return nil
		case <-s.cancelled:
			return s.notifyCancelled()
		case message := <-s.queue:
			if message.ID <= s.delivered {
				continue
			}
			s.deliver(message)
		}
	}
}

// deliver reports false when the subscription stopped before the consumer
// took the event.
func (s *Subscription) deliver(message domain.Message) bool {
	select {
	case <-s.cancelled:
		return false
	default:
	}
	select {
	case s.events <- event.Added{Message: message}:
		s.delivered = message.ID
		s.metrics.EventDelivered()
		return true
	case <-s.ctx.Done():
		return false
	case <-s.cancelled:
		return false
	}
}

// notifyCancelled hands the final event over unless the consumer detaches first.
func (s *Subscription) notifyCancelled() error {
	select {
	case s.events <- event.Cancelled{Reason: s.reason}:
	case <-s.ctx.Done():
	}
	return s.reason
}
