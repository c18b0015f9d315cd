// Package projection builds local timelines from observed events.
// Handles ordering and deduplication.
// Does not emit events or interact with UI directly.
package projection

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"slices"
	"sync"
)

// Timeline holds the messages one client has rendered so far, by ascending id.
type Timeline struct {
	mu       sync.RWMutex
	Owner    string
	messages []domain.Message
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner}
}

// Consume applies one change event. Cancelled is left to the caller.
func (t *Timeline) Consume(e event.ChangeEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.Added:
		t.upsert(evt.Message)
	case event.Changed:
		t.upsert(evt.Message)
	case event.Removed:
		t.remove(evt.Message.ID)
	case event.Moved:
		t.remove(evt.PreviousID)
		t.upsert(evt.Message)
	}
}

// Clear drops everything, typically on sign-out.
func (t *Timeline) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// Messages returns a copy.
func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// LastID is the cursor to resume from after a cancelled subscription.
func (t *Timeline) LastID() domain.MessageID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return domain.Beginning
	}
	return t.messages[len(t.messages)-1].ID
}

func (t *Timeline) upsert(message domain.Message) {
	i, found := t.search(message.ID)
	if found {
		t.messages[i] = message
		return
	}
	t.messages = slices.Insert(t.messages, i, message)
}

func (t *Timeline) remove(id domain.MessageID) {
	if i, found := t.search(id); found {
		t.messages = slices.Delete(t.messages, i, i+1)
	}
}

func (t *Timeline) search(id domain.MessageID) (int, bool) {
	return slices.BinarySearchFunc(t.messages, id, func(m domain.Message, id domain.MessageID) int {
		switch {
		case m.ID < id:
			return -1
		case m.ID > id:
			return 1
		default:
			return 0
		}
	})
}
