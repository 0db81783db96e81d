// ABOUTME: Tests for error translation between repositories and gRPC status
// ABOUTME: Storage failures must survive a round trip as ErrStorageUnavailable

package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/store"
)

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))

	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"storage", store.Unavailable("writing", errors.New("disk full")), codes.Unavailable},
		{"closed", store.ErrClosed, codes.Unavailable},
		{"canceled", fmt.Errorf("reading: %w", context.Canceled), codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"invalid item", fmt.Errorf("%w: price NaN", inventory.ErrInvalidItem), codes.InvalidArgument},
		{"other", errors.New("unexpected"), codes.Internal},
		{"already status", status.Error(codes.InvalidArgument, "bad"), codes.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}
}

func TestFromStatus(t *testing.T) {
	assert.NoError(t, fromStatus(nil))

	err := fromStatus(toStatus(store.ErrClosed))
	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "engine closed")

	assert.ErrorIs(t, fromStatus(status.Error(codes.Canceled, "x")), context.Canceled)
	assert.ErrorIs(t, fromStatus(status.Error(codes.DeadlineExceeded, "x")), context.DeadlineExceeded)

	invalid := fromStatus(status.Error(codes.InvalidArgument, "price NaN"))
	assert.ErrorIs(t, invalid, inventory.ErrInvalidItem)
	assert.NotErrorIs(t, invalid, store.ErrStorageUnavailable)

	internal := status.Error(codes.Internal, "boom")
	assert.Equal(t, internal, fromStatus(internal))

	plain := errors.New("plain")
	assert.Equal(t, plain, fromStatus(plain))
}
