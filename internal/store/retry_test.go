package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 4, BaseDelay: time.Millisecond, MaxJitter: time.Millisecond}
}

func TestRunWithRetry(t *testing.T) {
	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		mem := NewMemory()
		mem.InjectConflicts(2)

		attempts := 0
		err := RunWithRetry(context.Background(), mem, fastPolicy(), func(tx Tx) error {
			attempts++
			return tx.CreateBatch(&types.Batch{BatchID: "a", Organization: "acme", TimeCreated: time.Now()})
		})
		if err != nil {
			t.Fatalf("RunWithRetry failed: %v", err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts)
		}
		if _, err := mem.GetBatch(context.Background(), "a"); err != nil {
			t.Errorf("batch should exist after retries: %v", err)
		}
	})

	t.Run("exhausts the attempt budget", func(t *testing.T) {
		mem := NewMemory()
		mem.InjectConflicts(100)

		attempts := 0
		err := RunWithRetry(context.Background(), mem, fastPolicy(), func(tx Tx) error {
			attempts++
			return nil
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if attempts != 4 {
			t.Errorf("expected 4 attempts, got %d", attempts)
		}
	})

	t.Run("does not retry business errors", func(t *testing.T) {
		mem := NewMemory()
		boom := errors.New("boom")

		attempts := 0
		err := RunWithRetry(context.Background(), mem, fastPolicy(), func(tx Tx) error {
			attempts++
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected body error, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("business errors must not be retried, got %d attempts", attempts)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		mem := NewMemory()
		mem.InjectConflicts(100)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := RunWithRetry(ctx, mem, fastPolicy(), func(tx Tx) error { return nil })
		if err == nil {
			t.Fatal("expected error with cancelled context")
		}
	})
}
