// ABOUTME: Error taxonomy for the storage engine
// ABOUTME: Every driver failure is reported as ErrStorageUnavailable

package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrStorageUnavailable is returned when the backing medium cannot be opened,
// read or written. The operation in progress had no effect.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrClosed is returned by operations on a closed engine. It matches
// ErrStorageUnavailable with errors.Is.
var ErrClosed = fmt.Errorf("%w: engine closed", ErrStorageUnavailable)

// Unavailable wraps err as a storage failure of op. Context errors and errors
// that are already storage failures pass through with only op added.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
