// ABOUTME: Maps storage errors to gRPC status codes and back
// ABOUTME: codes.Unavailable carries store.ErrStorageUnavailable across the wire, InvalidArgument carries ErrInvalidItem

package remote

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/inventory/internal/inventory"
	"github.com/2389/inventory/internal/store"
)

// toStatus converts a repository error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, store.ErrStorageUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, inventory.ErrInvalidItem):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus converts a gRPC error back to the error a local repository would
// have returned.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", store.ErrStorageUnavailable, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", inventory.ErrInvalidItem, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	default:
		return err
	}
}
