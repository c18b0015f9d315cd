// Package session tracks who is sending messages right now.
package session

import (
	"chat-relay/errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samber/lo"
)

// Anonymous stamps messages sent while nobody is signed in.
const Anonymous = "anonymous"

// Transition is one state change. A nil identity means signed out.
type Transition struct {
	Previous *string
	Current  *string
}

func (t Transition) SignedIn() bool { return t.Current != nil }

func (t Transition) SignedOut() bool { return t.Current == nil }

// Context is a SignedOut / SignedIn(identity) state machine.
// SignedOut is the initial state.
type Context struct {
	// transitions serializes state changes and their notification
	transitions sync.Mutex
	mu          sync.RWMutex
	log         *slog.Logger
	identity    *string
	observers   []func(Transition)
}

func NewContext(log *slog.Logger) *Context {
	return &Context{log: log}
}

// CurrentIdentity returns the signed in display name, or Anonymous.
func (c *Context) CurrentIdentity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return Anonymous
	}
	return *c.identity
}

func (c *Context) IsSignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity != nil
}

// Observe registers fn for every future transition. Observers run
// synchronously, in registration order, before OnIdentityChanged returns.
func (c *Context) Observe(fn func(Transition)) {
	c.transitions.Lock()
	defer c.transitions.Unlock()
	c.observers = append(c.observers, fn)
}

// OnIdentityChanged applies an authentication event; nil signs out.
// Switching from one identity to another goes through SignedOut, so
// observers see a sign-out followed by a sign-in.
func (c *Context) OnIdentityChanged(identity *string) error {
	if identity != nil {
		trimmed := strings.TrimSpace(*identity)
		if trimmed == "" {
			return errors.ErrEmptyIdentity
		}
		if !utf8.ValidString(trimmed) {
			return errors.ErrInvalidIdentity
		}
		identity = lo.ToPtr(trimmed)
	}

	c.transitions.Lock()
	defer c.transitions.Unlock()

	current := c.load()
	switch {
	case current == nil && identity == nil:
		return nil
	case current != nil && identity != nil && *current == *identity:
		return nil
	}

	if current != nil {
		c.apply(Transition{Previous: current, Current: nil})
	}
	if identity != nil {
		c.apply(Transition{Previous: nil, Current: identity})
	}
	return nil
}

func (c *Context) load() *string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

func (c *Context) apply(transition Transition) {
	c.mu.Lock()
	c.identity = transition.Current
	c.mu.Unlock()

	if transition.SignedIn() {
		c.log.Info("Signed in", "identity", *transition.Current)
	} else {
		c.log.Info("Signed out", "identity", *transition.Previous)
	}
	for _, observer := range c.observers {
		observer(transition)
	}
}
