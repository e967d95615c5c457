package store

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryWithBackoff wraps an operation with exponential backoff retry logic.
// Retries on transient SQLite contention (SQLITE_BUSY, "database is locked");
// all other errors stop immediately.
func RetryWithBackoff(operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = 5 * time.Second
	b.RandomizationFactor = 0.2

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if isLockError(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, b)
}
