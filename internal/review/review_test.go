package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

func newTestEngine(mem *store.Memory) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mem, orgs.New(mem, logger), logger)
}

func seedHeldBatch(mem *store.Memory, docs ...string) {
	mem.SeedBatch(&types.Batch{
		BatchID: "b1", Organization: "acme",
		Documents: docs, DocumentCount: len(docs),
		IsCheckedOut: true, Owner: "alice",
		Heartbeat:   time.Now().UTC().Add(-time.Minute),
		TimeCreated: time.Now().UTC().Add(-time.Hour),
	})
	for _, id := range docs {
		mem.SeedDocument(&types.Document{
			ID: id, Organization: "acme", Filename: id + ".pdf",
			Fields: map[string]any{}, TimeCreated: time.Now().UTC(),
		})
	}
}

func TestSaveProgress(t *testing.T) {
	t.Run("advances the cursor and patches fields", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0", "d1", "d2")

		e := newTestEngine(mem)
		fields := map[string]any{"invoice_total": "42.50"}
		if err := e.SaveProgress(context.Background(), "b1", "acme", 1, "d1", fields); err != nil {
			t.Fatalf("SaveProgress failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.DocumentIndex != 1 {
			t.Errorf("expected cursor 1, got %d", b.DocumentIndex)
		}

		d, _ := mem.GetDocument(context.Background(), "d1")
		if d.Fields["invoice_total"] != "42.50" {
			t.Errorf("document fields not patched: %v", d.Fields)
		}
	})

	t.Run("refreshes the heartbeat", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0")
		before, _ := mem.GetBatch(context.Background(), "b1")

		e := newTestEngine(mem)
		if err := e.SaveProgress(context.Background(), "b1", "acme", 0, "d0", nil); err != nil {
			t.Fatalf("SaveProgress failed: %v", err)
		}

		after, _ := mem.GetBatch(context.Background(), "b1")
		if !after.Heartbeat.After(before.Heartbeat) {
			t.Error("saving progress should refresh the heartbeat")
		}
	})

	t.Run("lost lease rejects", func(t *testing.T) {
		mem := store.NewMemory()
		mem.SeedBatch(&types.Batch{
			BatchID: "b1", Organization: "acme",
			Documents: []string{"d0"}, DocumentCount: 1,
			TimeCreated: time.Now().UTC(),
		})

		e := newTestEngine(mem)
		err := e.SaveProgress(context.Background(), "b1", "acme", 0, "d0", nil)
		if !errors.Is(err, lease.ErrNotHeld) {
			t.Fatalf("expected ErrNotHeld, got %v", err)
		}
	})

	t.Run("wrong organization", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0")

		e := newTestEngine(mem)
		err := e.SaveProgress(context.Background(), "b1", "globex", 0, "d0", nil)
		if !errors.Is(err, lease.ErrWrongOrganization) {
			t.Fatalf("expected ErrWrongOrganization, got %v", err)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0", "d1")

		e := newTestEngine(mem)
		for _, idx := range []int{-1, 2, 10} {
			err := e.SaveProgress(context.Background(), "b1", "acme", idx, "d0", nil)
			if !errors.Is(err, ErrInvalidIndex) {
				t.Errorf("index %d: expected ErrInvalidIndex, got %v", idx, err)
			}
		}
	})

	t.Run("document position mismatch", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0", "d1")

		e := newTestEngine(mem)
		err := e.SaveProgress(context.Background(), "b1", "acme", 0, "d1", nil)
		if !errors.Is(err, ErrWrongDocument) {
			t.Fatalf("expected ErrWrongDocument, got %v", err)
		}
	})
}

func TestFinalizeFull(t *testing.T) {
	mem := store.NewMemory()
	seedHeldBatch(mem, "d0", "d1", "d2")

	e := newTestEngine(mem)
	if err := e.Finalize(context.Background(), "b1", "acme", false); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	b, _ := mem.GetBatch(context.Background(), "b1")
	if !b.IsFinished {
		t.Error("batch should be finished")
	}
	if b.IsCheckedOut || b.Owner != "" {
		t.Error("lease should be cleared")
	}
	if b.TimeFinished.IsZero() {
		t.Error("finish time should be set")
	}

	for _, id := range []string{"d0", "d1", "d2"} {
		d, _ := mem.GetDocument(context.Background(), id)
		if !d.Reviewed {
			t.Errorf("document %s should be marked reviewed", id)
		}
	}

	// Finished batches are terminal.
	if err := e.Finalize(context.Background(), "b1", "acme", false); !errors.Is(err, lease.ErrFinished) {
		t.Fatalf("expected ErrFinished on second finalize, got %v", err)
	}
}

func TestFinalizePartial(t *testing.T) {
	t.Run("keeps approved work and reopens the rest", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0", "d1", "d2", "d3")

		e := newTestEngine(mem)
		if err := e.SaveProgress(context.Background(), "b1", "acme", 1, "d1", nil); err != nil {
			t.Fatalf("SaveProgress failed: %v", err)
		}
		if err := e.Finalize(context.Background(), "b1", "acme", true); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.IsFinished {
			t.Error("partially finalized batch must not be terminal")
		}
		if b.IsCheckedOut || b.Owner != "" {
			t.Error("lease should be cleared")
		}
		if !b.Assignable() {
			t.Error("remainder should return to the assignable pool")
		}
		if b.DocumentCount != 2 {
			t.Errorf("expected 2 remaining documents, got %d", b.DocumentCount)
		}
		if len(b.Documents) != 2 || b.Documents[0] != "d2" || b.Documents[1] != "d3" {
			t.Errorf("expected remainder [d2 d3], got %v", b.Documents)
		}
		if b.DocumentIndex != 0 {
			t.Errorf("cursor should reset, got %d", b.DocumentIndex)
		}

		for id, want := range map[string]bool{"d0": true, "d1": true, "d2": false, "d3": false} {
			d, _ := mem.GetDocument(context.Background(), id)
			if d.Reviewed != want {
				t.Errorf("document %s reviewed = %v, want %v", id, d.Reviewed, want)
			}
		}
	})

	t.Run("cursor at zero consumes one document", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0", "d1")

		e := newTestEngine(mem)
		if err := e.Finalize(context.Background(), "b1", "acme", true); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.DocumentCount != 1 || b.Documents[0] != "d1" {
			t.Errorf("expected one remaining document d1, got %v", b.Documents)
		}
	})

	t.Run("cursor at the end empties the batch", func(t *testing.T) {
		mem := store.NewMemory()
		seedHeldBatch(mem, "d0", "d1")

		e := newTestEngine(mem)
		if err := e.SaveProgress(context.Background(), "b1", "acme", 1, "d1", nil); err != nil {
			t.Fatalf("SaveProgress failed: %v", err)
		}
		if err := e.Finalize(context.Background(), "b1", "acme", true); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.DocumentCount != 0 || len(b.Documents) != 0 {
			t.Errorf("expected empty batch, got count=%d docs=%v", b.DocumentCount, b.Documents)
		}
	})

	t.Run("clears the full flag when room opens up", func(t *testing.T) {
		mem := store.NewMemory()
		mem.SeedOrganization(&types.Organization{Name: "acme", MaxBatchSize: 3})
		mem.SeedBatch(&types.Batch{
			BatchID: "b1", Organization: "acme",
			Documents: []string{"d0", "d1", "d2"}, DocumentCount: 3, IsFull: true,
			IsCheckedOut: true, Owner: "alice", DocumentIndex: 0,
			TimeCreated: time.Now().UTC(),
		})

		e := newTestEngine(mem)
		if err := e.Finalize(context.Background(), "b1", "acme", true); err != nil {
			t.Fatalf("Finalize failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "b1")
		if b.IsFull {
			t.Error("batch below capacity should no longer be full")
		}
	})

	t.Run("not held rejects", func(t *testing.T) {
		mem := store.NewMemory()
		mem.SeedBatch(&types.Batch{
			BatchID: "b1", Organization: "acme",
			Documents: []string{"d0"}, DocumentCount: 1,
			TimeCreated: time.Now().UTC(),
		})

		e := newTestEngine(mem)
		if err := e.Finalize(context.Background(), "b1", "acme", true); !errors.Is(err, lease.ErrNotHeld) {
			t.Fatalf("expected ErrNotHeld, got %v", err)
		}
	})
}
