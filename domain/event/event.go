// Package event defines the change notifications a subscription delivers.
package event

import (
	"chat-relay/domain"
)

type Kind int

const (
	KindAdded Kind = iota
	KindChanged
	KindRemoved
	KindMoved
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindChanged:
		return "changed"
	case KindRemoved:
		return "removed"
	case KindMoved:
		return "moved"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ChangeEvent is one notification of a subscription stream.
// The append-only log only ever produces Added, and Cancelled when a
// subscription is torn down involuntarily. Changed, Removed and Moved are
// part of the contract so consumers can switch on every kind.
type ChangeEvent interface {
	Kind() Kind
}

type Added struct {
	Message domain.Message
}

func (Added) Kind() Kind { return KindAdded }

type Changed struct {
	Message domain.Message
}

func (Changed) Kind() Kind { return KindChanged }

type Removed struct {
	Message domain.Message
}

func (Removed) Kind() Kind { return KindRemoved }

type Moved struct {
	Message    domain.Message
	PreviousID domain.MessageID
}

func (Moved) Kind() Kind { return KindMoved }

// Cancelled is always the last event of a stream that was torn down
// without the consumer asking for it. Reason wraps errors.ErrDeliveryCancelled.
type Cancelled struct {
	Reason error
}

func (Cancelled) Kind() Kind { return KindCancelled }
