package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BaseBackoff is the wait before the first retry. Each later retry doubles it.
const BaseBackoff = 500 * time.Millisecond

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (e *Permanent) Error() string { return e.Err.Error() }

func (e *Permanent) Unwrap() error { return e.Err }

// Retry calls attempt up to 1+retries times with exponential backoff
// between calls. It stops early on success, on context cancellation, or
// when attempt returns a *Permanent error. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.Err)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// Nop discards every event.
type Nop struct{}

// Publish implements Adapter.
func (Nop) Publish(context.Context, *FileCommittedEvent) error { return nil }

// Close implements Adapter.
func (Nop) Close() error { return nil }

var _ Adapter = Nop{}
