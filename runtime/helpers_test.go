package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	log     *slog.Logger
	store   *MessageStore
	hub     *Hub
	metrics *observability.Metrics
}

func newFixture(t *testing.T, bufferSize int) fixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store, err := NewMessageStore(log, repositories.NewMessageRepository(db, log), metrics, 4)
	require.NoError(t, err)
	hub := NewHub(log, store, NewRegistry(), metrics, bufferSize)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Close(ctx)
	})
	return fixture{log: log, store: store, hub: hub, metrics: metrics}
}

func text(author, content string) domain.Message {
	return domain.Message{Author: author, Text: content}
}

// collect reads n events or fails after a timeout.
func collect(t *testing.T, sub *Subscription, n int) []event.ChangeEvent {
	t.Helper()
	var res []event.ChangeEvent
	timeout := time.After(5 * time.Second)
	for len(res) < n {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return res
			}
			res = append(res, evt)
		case <-timeout:
			t.Fatalf("only %d events received out of %d", len(res), n)
		}
	}
	return res
}

// drain reads until the channel is closed.
func drain(t *testing.T, sub *Subscription) []event.ChangeEvent {
	t.Helper()
	var res []event.ChangeEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return res
			}
			res = append(res, evt)
		case <-timeout:
			t.Fatalf("subscription not closed, %d events received", len(res))
		}
	}
}

func addedIDs(t *testing.T, events []event.ChangeEvent) []domain.MessageID {
	t.Helper()
	var ids []domain.MessageID
	for _, evt := range events {
		added, ok := evt.(event.Added)
		if !ok {
			continue
		}
		ids = append(ids, added.Message.ID)
	}
	return ids
}

func sequence(from, to domain.MessageID) []domain.MessageID {
	var ids []domain.MessageID
	for id := from; id <= to; id++ {
		ids = append(ids, id)
	}
	return ids
}
