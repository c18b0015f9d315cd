package projection

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func message(id domain.MessageID, author, text string) domain.Message {
	return domain.Message{ID: id, Author: author, Text: text}
}

func ids(messages []domain.Message) []domain.MessageID {
	return lo.Map(messages, func(m domain.Message, _ int) domain.MessageID { return m.ID })
}

func TestTimeline_Consume_Added(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("client-1")

	timeline.Consume(event.Added{Message: message(1, "Alice", "Hello Bob")})
	timeline.Consume(event.Added{Message: message(2, "Clara", "Hi Bob")})

	messages := timeline.Messages()
	req.Len(messages, 2)
	req.Equal("Alice", messages[0].Author)
	req.Equal("Clara", messages[1].Author)
	req.Equal(domain.MessageID(2), timeline.LastID())
}

func TestTimeline_Keeps_Order_And_Deduplicates(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("client-1")

	for _, id := range []domain.MessageID{3, 1, 2, 3, 1} {
		timeline.Consume(event.Added{Message: message(id, "alice", "hi")})
	}

	req.Equal([]domain.MessageID{1, 2, 3}, ids(timeline.Messages()))
}

func TestTimeline_Changed_Removed_Moved(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("client-1")
	for id := domain.MessageID(1); id <= 3; id++ {
		timeline.Consume(event.Added{Message: message(id, "alice", "hi")})
	}

	timeline.Consume(event.Changed{Message: message(2, "alice", "edited")})
	req.Equal("edited", timeline.Messages()[1].Text)

	timeline.Consume(event.Removed{Message: message(1, "alice", "hi")})
	req.Equal([]domain.MessageID{2, 3}, ids(timeline.Messages()))

	timeline.Consume(event.Moved{Message: message(5, "alice", "edited"), PreviousID: 2})
	req.Equal([]domain.MessageID{3, 5}, ids(timeline.Messages()))

	timeline.Consume(event.Cancelled{Reason: errors.ErrSignedOut})
	req.Equal(2, timeline.Len())
}

func TestTimeline_Clear(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("client-1")
	timeline.Consume(event.Added{Message: message(1, "alice", "hi")})

	messages := timeline.Messages()
	timeline.Clear()

	req.Zero(timeline.Len())
	req.Equal(domain.Beginning, timeline.LastID())
	// Earlier copies are untouched
	req.Len(messages, 1)
}
