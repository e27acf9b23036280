// Package sweeper reclaims batch leases whose holder has gone silent. A
// checked-out batch whose heartbeat is older than the staleness threshold
// is force-released; its saved progress is kept, only the session ends.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
)

// Config holds the sweep cadence and the two staleness policies: the
// conservative production threshold and a faster one for aggressive
// reclamation. Both are deployment policy, not protocol.
type Config struct {
	Interval            time.Duration
	StaleThreshold      time.Duration
	AggressiveThreshold time.Duration
}

// DefaultConfig returns the production sweep policy.
func DefaultConfig() Config {
	return Config{
		Interval:            time.Minute,
		StaleThreshold:      20 * time.Minute,
		AggressiveThreshold: 5 * time.Minute,
	}
}

// Sweeper periodically scans checked-out batches and reclaims dead ones.
type Sweeper struct {
	store  store.Store
	leases *lease.Manager
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a sweeper.
func New(s store.Store, leases *lease.Manager, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultConfig().StaleThreshold
	}
	if cfg.AggressiveThreshold <= 0 {
		cfg.AggressiveThreshold = DefaultConfig().AggressiveThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:  s,
		leases: leases,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Sweep
// failures are logged and the loop continues; the next cycle re-evaluates
// everything anyway.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("liveness sweep started",
		"interval", s.cfg.Interval, "stale_threshold", s.cfg.StaleThreshold)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("liveness sweep stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx, false); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep evaluates every checked-out unfinished batch once and returns how
// many leases it reclaimed. A failure on one batch is logged and skipped so
// one bad record cannot block the rest.
func (s *Sweeper) Sweep(ctx context.Context, aggressive bool) (int, error) {
	threshold := s.cfg.StaleThreshold
	if aggressive {
		threshold = s.cfg.AggressiveThreshold
	}

	batches, err := s.store.ListCheckedOut(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list checked-out batches: %w", err)
	}

	now := s.now()
	released := 0
	for _, b := range batches {
		if !b.HeartbeatStale(now, threshold) {
			continue
		}
		if err := s.leases.ForceRelease(ctx, b.BatchID); err != nil {
			s.logger.Error("failed to reclaim stale batch",
				"batch", b.BatchID, "owner", b.Owner, "error", err)
			continue
		}
		s.logger.Info("reclaimed stale batch",
			"batch", b.BatchID, "owner", b.Owner,
			"silent_for", now.Sub(b.Heartbeat).Round(time.Second))
		released++
	}
	return released, nil
}
