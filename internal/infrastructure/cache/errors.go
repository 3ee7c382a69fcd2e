package cache

import (
	"context"
	"errors"
)

// ErrCancelled reports that a fetch was abandoned because a newer load cycle
// started or the query was closed. It is never surfaced as a user-facing error.
var ErrCancelled = errors.New("cache: fetch cancelled")

// IsCancelled reports whether err is a cancellation rather than a failure
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
