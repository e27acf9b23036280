package store

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryPolicy bounds the optimistic retry loop around contended
// transactions: exponential backoff from BaseDelay with random jitter up to
// MaxJitter, giving up after Attempts.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration
	MaxJitter time.Duration
}

// DefaultRetryPolicy matches the production assignment path: a handful of
// quick attempts, enough to ride out a burst of concurrent ingestions on
// the same batch without stalling the caller.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  5,
		BaseDelay: 50 * time.Millisecond,
		MaxJitter: 250 * time.Millisecond,
	}
}

// RunWithRetry executes fn as a transaction, retrying only on ErrConflict.
// Validation, not-found, and backend errors abort on the first attempt.
// After exhausting attempts the last conflict error is returned for the
// caller to surface.
func RunWithRetry(ctx context.Context, s Store, p RetryPolicy, fn func(tx Tx) error) error {
	if p.Attempts == 0 {
		p = DefaultRetryPolicy()
	}
	return retry.Do(
		func() error {
			return s.RunTransaction(ctx, fn)
		},
		retry.Context(ctx),
		retry.Attempts(p.Attempts),
		retry.Delay(p.BaseDelay),
		retry.MaxJitter(p.MaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrConflict)
		}),
		retry.LastErrorOnly(true),
	)
}
