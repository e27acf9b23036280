package lease

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

func newTestManager(mem *store.Memory) *Manager {
	return NewManager(mem, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seedBatch(mem *store.Memory, b types.Batch) {
	if b.TimeCreated.IsZero() {
		b.TimeCreated = time.Now().UTC()
	}
	mem.SeedBatch(&b)
}

func TestAcquire(t *testing.T) {
	t.Run("takes the lease and resets the cursor", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{
			BatchID: "b1", Organization: "acme",
			Documents: []string{"a", "b"}, DocumentCount: 2,
			DocumentIndex: 1,
		})

		m := newTestManager(mem)
		if err := m.Acquire(context.Background(), "b1", "alice", "acme"); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if !b.IsCheckedOut {
			t.Error("batch should be checked out")
		}
		if b.Owner != "alice" {
			t.Errorf("expected owner alice, got %q", b.Owner)
		}
		if b.Heartbeat.IsZero() {
			t.Error("heartbeat should be set on acquire")
		}
		if b.DocumentIndex != 0 {
			t.Errorf("document index should reset to 0, got %d", b.DocumentIndex)
		}
	})

	t.Run("held batch reports the owner", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{
			BatchID: "b1", Organization: "acme",
			IsCheckedOut: true, Owner: "bob",
		})

		m := newTestManager(mem)
		err := m.Acquire(context.Background(), "b1", "alice", "acme")

		var held *HeldError
		if !errors.As(err, &held) {
			t.Fatalf("expected HeldError, got %v", err)
		}
		if held.Owner != "bob" {
			t.Errorf("expected owner bob in error, got %q", held.Owner)
		}
	})

	t.Run("wrong organization", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{BatchID: "b1", Organization: "globex"})

		m := newTestManager(mem)
		if err := m.Acquire(context.Background(), "b1", "alice", "acme"); !errors.Is(err, ErrWrongOrganization) {
			t.Fatalf("expected ErrWrongOrganization, got %v", err)
		}
	})

	t.Run("finished batch", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{BatchID: "b1", Organization: "acme", IsFinished: true})

		m := newTestManager(mem)
		if err := m.Acquire(context.Background(), "b1", "alice", "acme"); !errors.Is(err, ErrFinished) {
			t.Fatalf("expected ErrFinished, got %v", err)
		}
	})

	t.Run("unknown batch", func(t *testing.T) {
		m := newTestManager(store.NewMemory())
		if err := m.Acquire(context.Background(), "nope", "alice", "acme"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestAcquireConcurrentExactlyOneWinner(t *testing.T) {
	mem := store.NewMemory()
	seedBatch(mem, types.Batch{BatchID: "b1", Organization: "acme"})

	m := newTestManager(mem)

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			caller := string(rune('A' + n))
			err := m.Acquire(context.Background(), "b1", caller, "acme")
			if err == nil {
				wins <- caller
				return
			}
			var held *HeldError
			if !errors.As(err, &held) {
				t.Errorf("losers must see HeldError, got %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}

	b, _ := mem.GetBatch(context.Background(), "b1")
	if b.Owner != winners[0] {
		t.Errorf("stored owner %q does not match winner %q", b.Owner, winners[0])
	}
}

func TestRelease(t *testing.T) {
	t.Run("returns the batch to the pool", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{
			BatchID: "b1", Organization: "acme",
			IsCheckedOut: true, Owner: "alice", DocumentIndex: 3,
		})

		m := newTestManager(mem)
		if err := m.Release(context.Background(), "b1", "acme"); err != nil {
			t.Fatalf("Release failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.IsCheckedOut || b.Owner != "" {
			t.Errorf("lease should be cleared, got checkedOut=%v owner=%q", b.IsCheckedOut, b.Owner)
		}
		if b.DocumentIndex != 0 {
			t.Errorf("voluntary release resets the cursor, got %d", b.DocumentIndex)
		}
	})

	t.Run("not held", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{BatchID: "b1", Organization: "acme"})

		m := newTestManager(mem)
		if err := m.Release(context.Background(), "b1", "acme"); !errors.Is(err, ErrNotHeld) {
			t.Fatalf("expected ErrNotHeld, got %v", err)
		}
	})

	t.Run("wrong organization", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{
			BatchID: "b1", Organization: "globex",
			IsCheckedOut: true, Owner: "alice",
		})

		m := newTestManager(mem)
		if err := m.Release(context.Background(), "b1", "acme"); !errors.Is(err, ErrWrongOrganization) {
			t.Fatalf("expected ErrWrongOrganization, got %v", err)
		}
	})
}

func TestForceRelease(t *testing.T) {
	t.Run("clears the lease but keeps progress", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{
			BatchID: "b1", Organization: "acme",
			IsCheckedOut: true, Owner: "alice",
			Documents: []string{"a", "b", "c"}, DocumentCount: 3,
			DocumentIndex: 2,
		})

		m := newTestManager(mem)
		if err := m.ForceRelease(context.Background(), "b1"); err != nil {
			t.Fatalf("ForceRelease failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.IsCheckedOut || b.Owner != "" {
			t.Error("lease should be cleared")
		}
		if b.DocumentIndex != 2 {
			t.Errorf("force release must not touch the cursor, got %d", b.DocumentIndex)
		}
		if len(b.Documents) != 3 {
			t.Errorf("force release must not touch documents, got %v", b.Documents)
		}
	})

	t.Run("idle batch is a no-op", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{BatchID: "b1", Organization: "acme"})

		m := newTestManager(mem)
		if err := m.ForceRelease(context.Background(), "b1"); err != nil {
			t.Fatalf("ForceRelease on idle batch should succeed: %v", err)
		}
	})
}

func TestHeartbeat(t *testing.T) {
	t.Run("refreshes the timestamp", func(t *testing.T) {
		stale := time.Now().UTC().Add(-time.Hour)
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{
			BatchID: "b1", Organization: "acme",
			IsCheckedOut: true, Owner: "alice", Heartbeat: stale,
		})

		m := newTestManager(mem)
		if err := m.Heartbeat(context.Background(), "b1", "acme"); err != nil {
			t.Fatalf("Heartbeat failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if !b.Heartbeat.After(stale) {
			t.Error("heartbeat should advance")
		}
	})

	t.Run("lost lease rejects with reacquire signal", func(t *testing.T) {
		mem := store.NewMemory()
		seedBatch(mem, types.Batch{BatchID: "b1", Organization: "acme"})

		m := newTestManager(mem)
		if err := m.Heartbeat(context.Background(), "b1", "acme"); !errors.Is(err, ErrNotHeld) {
			t.Fatalf("expected ErrNotHeld, got %v", err)
		}
	})
}

func TestValidateHeldOrdering(t *testing.T) {
	// Organization mismatch wins over any other state so a foreign tenant
	// learns nothing about the batch.
	b := &types.Batch{Organization: "globex", IsFinished: true}
	if err := ValidateHeld(b, "acme"); !errors.Is(err, ErrWrongOrganization) {
		t.Fatalf("expected ErrWrongOrganization, got %v", err)
	}
}
