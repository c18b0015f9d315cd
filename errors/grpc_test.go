package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMapToGRPCError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"Empty text", ErrEmptyMessage, codes.InvalidArgument},
		{"Oversized photo", fmt.Errorf("%w: %w", ErrStoreFailed, ErrAttachmentTooLarge), codes.InvalidArgument},
		{"Upload failure", fmt.Errorf("%w: disk full", ErrStoreFailed), codes.Unavailable},
		{"Log failure", fmt.Errorf("%w: io", ErrStorageUnavailable), codes.Unavailable},
		{"Missing blob", ErrAttachmentNotFound, codes.NotFound},
		{"Unknown session", ErrUnknownSession, codes.Unauthenticated},
		{"Signed out", ErrSignedOut, codes.Aborted},
		{"Deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"Anything else", fmt.Errorf("boom"), codes.Internal},
		{"Already a status", status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, status.Code(MapToGRPCError(tt.err)))
		})
	}
	require.NoError(t, MapToGRPCError(nil))
}

func TestCancellationReasons_Wrap_DeliveryCancelled(t *testing.T) {
	for _, reason := range []error{ErrSubscriberTooSlow, ErrSignedOut, ErrHubClosed, ErrClientClosed} {
		require.ErrorIs(t, reason, ErrDeliveryCancelled)
	}
}
