// Package runtime holds the message log and the fan-out of its tail.
// It orchestrates delivery without containing transport or UI logic.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"
)

const defaultReplayPageSize = 128

// MessageStore is the append-only ordered log.
//
// A single mutex covers id assignment, persistence and publication, so two
// appends never interleave and subscribers observe ids in order.
type MessageStore struct {
	mu         sync.Mutex
	log        *slog.Logger
	repository contract.IMessageRepository
	publisher  contract.IPublisher
	metrics    *observability.Metrics
	tail       domain.MessageID
	pageSize   int
	now        func() time.Time
}

// NewMessageStore recovers the tail from the repository.
func NewMessageStore(log *slog.Logger, repository contract.IMessageRepository,
	metrics *observability.Metrics, pageSize int) (*MessageStore, error) {
	tail, err := repository.LastMessageID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	if pageSize <= 0 {
		pageSize = defaultReplayPageSize
	}
	log.Info("Message store ready", "tail", tail)
	return &MessageStore{
		log:        log,
		repository: repository,
		metrics:    metrics,
		tail:       tail,
		pageSize:   pageSize,
		now:        time.Now,
	}, nil
}

func (s *MessageStore) setPublisher(publisher contract.IPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = publisher
}

// Append assigns the next id, persists the message and publishes it.
// On a repository failure the tail does not move and the id is reused by
// the next append.
func (s *MessageStore) Append(ctx context.Context, message domain.Message) (domain.MessageID, error) {
	if err := ctx.Err(); err != nil {
		return domain.Beginning, err
	}
	if err := message.Validate(); err != nil {
		s.metrics.AppendFailed()
		return domain.Beginning, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	message.ID = s.tail + 1
	message.At = s.now().UTC()
	if err := s.repository.StoreMessage(message); err != nil {
		s.metrics.AppendFailed()
		s.log.Error("Message not persisted", "id", message.ID, "error", err)
		return domain.Beginning, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	s.tail = message.ID
	s.metrics.MessageAppended(uint64(message.ID))

	if s.publisher != nil {
		s.publisher.Publish(message)
	}
	return message.ID, nil
}

// Tail returns the id of the last persisted message.
func (s *MessageStore) Tail() domain.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail
}

// WithTail runs fn while appends are held off.
// Whatever fn registers observes every append after tail and none before.
func (s *MessageStore) WithTail(fn func(tail domain.MessageID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tail)
}

// ReplayFrom yields every message after cursor, in id order, up to the tail
// known when the iteration starts. Each iteration reads the store again.
func (s *MessageStore) ReplayFrom(cursor domain.Cursor) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		s.replay(cursor, s.Tail(), yield)
	}
}

// replayBetween yields the messages with after < id <= upTo.
func (s *MessageStore) replayBetween(after, upTo domain.MessageID) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		s.replay(after, upTo, yield)
	}
}

// replay reads page by page so no read transaction stays open while the
// consumer is slow.
func (s *MessageStore) replay(after, upTo domain.MessageID, yield func(domain.Message, error) bool) {
	for after < upTo {
		page, err := s.repository.GetMessages(after, upTo, s.pageSize)
		if err != nil {
			yield(domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err))
			return
		}
		if len(page) == 0 {
			return
		}
		for _, message := range page {
			if !yield(message, nil) {
				return
			}
			after = message.ID
		}
	}
}
