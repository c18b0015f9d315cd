package services

import (
	"chat-relay/attachment"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/projection"
	"chat-relay/runtime"
	"chat-relay/session"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

const DefaultMaxTextLength = 1000

// IClient is what a UI or a transport drives on behalf of one user.
type IClient interface {
	ID() string
	SendText(ctx context.Context, text string) (domain.MessageID, error)
	SendImage(ctx context.Context, content io.Reader, name string) (domain.MessageID, error)
	Subscribe(ctx context.Context, since domain.Cursor) (*runtime.Subscription, error)
	Unsubscribe(sub *runtime.Subscription)
	SignIn(identity string) error
	SignOut() error
	Identity() string
	Timeline() []domain.Message
	Close() error
}

type ClientConfig struct {
	MaxTextLength int
	// KeepTimeline maintains a local copy of the history while signed in.
	KeepTimeline bool
}

// history is the client's own subscription feeding its timeline.
type history struct {
	sub  *runtime.Subscription
	done chan struct{}
}

// Client composes the session, the store, the hub and the attachment
// resolver. Every subscription it opens is owned by its id, so signing out
// cancels all of them at once.
type Client struct {
	mu            sync.Mutex
	id            string
	log           *slog.Logger
	session       *session.Context
	store         *runtime.MessageStore
	hub           *runtime.Hub
	resolver      contract.IAttachmentResolver
	timeline      *projection.Timeline
	history       *history
	maxTextLength int
	closed        bool
}

var _ IClient = (*Client)(nil)

func NewClient(log *slog.Logger, store *runtime.MessageStore, hub *runtime.Hub,
	resolver contract.IAttachmentResolver, cfg ClientConfig) *Client {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = DefaultMaxTextLength
	}
	id := uuid.NewString()
	c := &Client{
		id:            id,
		log:           log.With("client", id),
		store:         store,
		hub:           hub,
		resolver:      resolver,
		maxTextLength: cfg.MaxTextLength,
	}
	c.session = session.NewContext(c.log)
	if cfg.KeepTimeline {
		c.timeline = projection.NewTimeline(id)
	}
	c.session.Observe(c.onTransition)
	return c
}

func (c *Client) ID() string { return c.id }

// SendText stamps text with the current identity and appends it.
func (c *Client) SendText(ctx context.Context, text string) (domain.MessageID, error) {
	if err := c.usable(); err != nil {
		return domain.Beginning, err
	}
	if strings.TrimSpace(text) == "" {
		return domain.Beginning, errors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > c.maxTextLength {
		return domain.Beginning, errors.ErrMessageTooLong
	}
	return c.store.Append(ctx, domain.Message{
		Text:   text,
		Author: c.session.CurrentIdentity(),
	})
}

// SendImage stores the photo first; the message is appended only once the
// attachment is durable.
func (c *Client) SendImage(ctx context.Context, content io.Reader, name string) (domain.MessageID, error) {
	if err := c.usable(); err != nil {
		return domain.Beginning, err
	}
	// Identity at send time, not after a slow upload
	author := c.session.CurrentIdentity()

	content, isImage, err := attachment.SniffImage(content)
	if err != nil {
		return domain.Beginning, err
	}
	if !isImage {
		return domain.Beginning, errors.ErrNotAnImage
	}
	reference, err := c.resolver.Store(ctx, content, name)
	if err != nil {
		return domain.Beginning, err
	}
	return c.store.Append(ctx, domain.Message{
		ImageRef: reference,
		Author:   author,
	})
}

// Subscribe replays every message after since then follows the tail.
func (c *Client) Subscribe(ctx context.Context, since domain.Cursor) (*runtime.Subscription, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	return c.hub.Attach(ctx, c.id, since)
}

func (c *Client) Unsubscribe(sub *runtime.Subscription) {
	c.hub.Detach(sub)
}

// ResolveImage returns the attachment a message points to.
func (c *Client) ResolveImage(ctx context.Context, reference string) (domain.Attachment, error) {
	return c.resolver.Resolve(ctx, reference)
}

func (c *Client) SignIn(identity string) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.session.OnIdentityChanged(&identity)
}

func (c *Client) SignOut() error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.session.OnIdentityChanged(nil)
}

func (c *Client) Identity() string {
	return c.session.CurrentIdentity()
}

func (c *Client) IsSignedIn() bool {
	return c.session.IsSignedIn()
}

// Timeline is nil unless the client keeps one.
func (c *Client) Timeline() []domain.Message {
	if c.timeline == nil {
		return nil
	}
	return c.timeline.Messages()
}

// Close cancels every subscription of the client. Further calls fail
// with errors.ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.hub.CancelOwner(c.id, errors.ErrClientClosed)
	c.stopHistory()
	c.log.Debug("Client closed")
	return nil
}

func (c *Client) usable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrClientClosed
	}
	return nil
}

// onTransition applies the re-attachment policy: signing out tears down
// every subscription and forgets the local history, signing in replays the
// whole log again.
func (c *Client) onTransition(transition session.Transition) {
	if transition.SignedOut() {
		c.hub.CancelOwner(c.id, errors.ErrSignedOut)
		c.stopHistory()
		if c.timeline != nil {
			c.timeline.Clear()
		}
		return
	}
	if c.timeline != nil {
		c.startHistory(domain.Beginning)
	}
}

func (c *Client) startHistory(since domain.Cursor) {
	sub, err := c.hub.Attach(context.Background(), c.id, since)
	if err != nil {
		c.log.Warn("History not attached", "error", err)
		return
	}
	h := &history{sub: sub, done: make(chan struct{})}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.hub.Detach(sub)
		return
	}
	c.history = h
	c.mu.Unlock()

	go c.consumeHistory(h)
}

// consumeHistory feeds the timeline. When the hub cancels the history for
// a reason other than the session ending, it resumes from the last id the
// timeline holds.
func (c *Client) consumeHistory(h *history) {
	defer close(h.done)
	var reason error
	for evt := range h.sub.Events() {
		if cancelled, ok := evt.(event.Cancelled); ok {
			reason = cancelled.Reason
			continue
		}
		c.timeline.Consume(evt)
	}
	if reason == nil || !resumable(reason) {
		return
	}
	c.log.Warn("History cancelled, resuming", "reason", reason, "since", c.timeline.LastID())
	c.resumeHistory(h)
}

// resumeHistory replaces previous unless stopHistory already took it.
func (c *Client) resumeHistory(previous *history) {
	sub, err := c.hub.Attach(context.Background(), c.id, c.timeline.LastID())
	if err != nil {
		c.log.Warn("History not resumed", "error", err)
		return
	}
	h := &history{sub: sub, done: make(chan struct{})}
	c.mu.Lock()
	current := c.history == previous && !c.closed
	if current {
		c.history = h
	}
	c.mu.Unlock()
	if !current {
		c.hub.Detach(sub)
		return
	}
	go c.consumeHistory(h)
}

func resumable(reason error) bool {
	return !errors.Is(reason, errors.ErrSignedOut) &&
		!errors.Is(reason, errors.ErrClientClosed) &&
		!errors.Is(reason, errors.ErrHubClosed)
}

// stopHistory returns once the history consumer applied its last event.
func (c *Client) stopHistory() {
	c.mu.Lock()
	h := c.history
	c.history = nil
	c.mu.Unlock()
	if h == nil {
		return
	}
	c.hub.Detach(h.sub)
	<-h.done
}
