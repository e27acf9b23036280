package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

func newTestSweeper(mem *store.Memory, cfg Config) *Sweeper {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mem, lease.NewManager(mem, logger), cfg, logger)
}

func seedCheckedOut(mem *store.Memory, id string, silentFor time.Duration) {
	now := time.Now().UTC()
	mem.SeedBatch(&types.Batch{
		BatchID: id, Organization: "acme",
		Documents: []string{"d0", "d1"}, DocumentCount: 2, DocumentIndex: 1,
		IsCheckedOut: true, Owner: "alice",
		Heartbeat:   now.Add(-silentFor),
		TimeCreated: now.Add(-24 * time.Hour),
	})
}

func TestSweep(t *testing.T) {
	cfg := Config{
		Interval:            time.Minute,
		StaleThreshold:      20 * time.Minute,
		AggressiveThreshold: 5 * time.Minute,
	}

	t.Run("reclaims stale leases", func(t *testing.T) {
		mem := store.NewMemory()
		seedCheckedOut(mem, "stale", 30*time.Minute)
		seedCheckedOut(mem, "fresh", time.Minute)

		s := newTestSweeper(mem, cfg)
		released, err := s.Sweep(context.Background(), false)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if released != 1 {
			t.Fatalf("expected 1 released, got %d", released)
		}

		stale, _ := mem.GetBatch(context.Background(), "stale")
		if stale.IsCheckedOut || stale.Owner != "" {
			t.Error("stale lease should be reclaimed")
		}

		fresh, _ := mem.GetBatch(context.Background(), "fresh")
		if !fresh.IsCheckedOut || fresh.Owner != "alice" {
			t.Error("fresh lease must be left alone")
		}
	})

	t.Run("keeps the session progress", func(t *testing.T) {
		mem := store.NewMemory()
		seedCheckedOut(mem, "stale", time.Hour)

		s := newTestSweeper(mem, cfg)
		if _, err := s.Sweep(context.Background(), false); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		b, _ := mem.GetBatch(context.Background(), "stale")
		if b.DocumentIndex != 1 {
			t.Errorf("reclaim must not touch the cursor, got %d", b.DocumentIndex)
		}
		if len(b.Documents) != 2 {
			t.Errorf("reclaim must not touch documents, got %v", b.Documents)
		}
	})

	t.Run("aggressive threshold reclaims sooner", func(t *testing.T) {
		mem := store.NewMemory()
		seedCheckedOut(mem, "b1", 10*time.Minute)

		s := newTestSweeper(mem, cfg)

		released, err := s.Sweep(context.Background(), false)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if released != 0 {
			t.Fatalf("10m silence is under the production threshold, released %d", released)
		}

		released, err = s.Sweep(context.Background(), true)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if released != 1 {
			t.Fatalf("aggressive sweep should reclaim, released %d", released)
		}
	})

	t.Run("nothing checked out", func(t *testing.T) {
		s := newTestSweeper(store.NewMemory(), cfg)
		released, err := s.Sweep(context.Background(), false)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if released != 0 {
			t.Fatalf("expected 0 released, got %d", released)
		}
	})

	t.Run("heartbeat exactly at threshold is reclaimed", func(t *testing.T) {
		mem := store.NewMemory()
		now := time.Now().UTC()
		mem.SeedBatch(&types.Batch{
			BatchID: "edge", Organization: "acme",
			IsCheckedOut: true, Owner: "alice",
			Heartbeat:   now.Add(-cfg.StaleThreshold),
			TimeCreated: now.Add(-time.Hour),
		})

		s := newTestSweeper(mem, cfg)
		s.now = func() time.Time { return now }

		released, err := s.Sweep(context.Background(), false)
		if err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		if released != 1 {
			t.Fatalf("threshold is inclusive, released %d", released)
		}
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	mem := store.NewMemory()
	s := newTestSweeper(mem, Config{
		Interval:            10 * time.Millisecond,
		StaleThreshold:      20 * time.Minute,
		AggressiveThreshold: 5 * time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run should return nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}
