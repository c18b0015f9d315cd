package errors

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapToGRPCError turns a relay error into a gRPC status.
// Errors that already carry a status are returned unchanged.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case Is(err, context.Canceled):
		return codes.Canceled
	case Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case Is(err, ErrInvalidMessage), Is(err, ErrEmptyMessage), Is(err, ErrMessageTooLong),
		Is(err, ErrNotAnImage), Is(err, ErrEmptyIdentity), Is(err, ErrInvalidIdentity),
		Is(err, ErrInvalidReference), Is(err, ErrInvalidAttachmentID), Is(err, ErrAttachmentTooLarge):
		return codes.InvalidArgument
	case Is(err, ErrAttachmentNotFound):
		return codes.NotFound
	case Is(err, ErrStorageUnavailable), Is(err, ErrStoreFailed):
		return codes.Unavailable
	case Is(err, ErrUnknownSession), Is(err, ErrInvalidToken):
		return codes.Unauthenticated
	case Is(err, ErrDeliveryCancelled):
		return codes.Aborted
	default:
		return codes.Internal
	}
}
