package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Message log
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")
	ErrInvalidMessage     = fmt.Errorf("invalid message")
	ErrEmptyMessage       = fmt.Errorf("message is empty")
	ErrMessageTooLong     = fmt.Errorf("message is too long")

	// Attachments
	ErrStoreFailed         = fmt.Errorf("attachment store failed")
	ErrAttachmentTooLarge  = fmt.Errorf("attachment is too large")
	ErrAttachmentNotFound  = fmt.Errorf("attachment not found")
	ErrInvalidReference    = fmt.Errorf("invalid attachment reference")
	ErrInvalidAttachmentID = fmt.Errorf("invalid attachment name")
	ErrNotAnImage          = fmt.Errorf("attachment is not an image")

	// Delivery
	ErrDeliveryCancelled = fmt.Errorf("delivery cancelled")
	ErrSubscriberTooSlow = fmt.Errorf("%w: subscriber fell behind", ErrDeliveryCancelled)
	ErrSignedOut         = fmt.Errorf("%w: signed out", ErrDeliveryCancelled)
	ErrHubClosed         = fmt.Errorf("%w: hub closed", ErrDeliveryCancelled)
	ErrClientClosed      = fmt.Errorf("%w: client closed", ErrDeliveryCancelled)

	// Sessions
	ErrEmptyIdentity   = fmt.Errorf("identity is empty")
	ErrInvalidIdentity = fmt.Errorf("invalid identity")
	ErrUnknownSession  = fmt.Errorf("unknown session")
	ErrInvalidToken    = fmt.Errorf("invalid or expired token")
	ErrWeakSecret      = fmt.Errorf("token secret is too short")
)

// Is mirrors the standard library so callers only import one errors package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As mirrors the standard library so callers only import one errors package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
