// Package lease grants exclusive, caller-scoped ownership of batches. At
// most one reviewer holds a batch at a time; mutual exclusion comes from
// the store's serializable transactions, not an external lock service.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// ErrWrongOrganization is returned when a batch belongs to a different
// tenant than the caller. Never retried.
var ErrWrongOrganization = errors.New("batch belongs to a different organization")

// ErrNotHeld is returned by mutating operations when the batch is not
// checked out — typically because the lease was force-released mid-session.
// The client must reacquire the batch before continuing.
var ErrNotHeld = errors.New("batch is not checked out; reacquire the batch")

// ErrFinished is returned when an operation targets a finalized batch.
var ErrFinished = errors.New("batch is already finalized")

// HeldError reports that the batch lease is held, and by whom.
type HeldError struct {
	Owner string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("batch already checked out by %s", e.Owner)
}

// ValidateHeld re-checks ownership of a checked-out batch before a mutating
// operation. A lost lease fails with ErrNotHeld rather than silently
// succeeding, so two sessions can never interleave writes to one batch.
func ValidateHeld(b *types.Batch, organization string) error {
	if b.Organization != organization {
		return ErrWrongOrganization
	}
	if b.IsFinished {
		return ErrFinished
	}
	if !b.IsCheckedOut {
		return ErrNotHeld
	}
	return nil
}

// Manager hands out and reclaims batch leases.
type Manager struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a lease manager.
func NewManager(s store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Acquire takes the lease on a batch for callerID. Exactly one concurrent
// caller succeeds; the rest observe HeldError naming the winner.
func (m *Manager) Acquire(ctx context.Context, batchID, callerID, organization string) error {
	err := m.store.RunTransaction(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(batchID)
		if err != nil {
			return err
		}
		if b.IsCheckedOut {
			return &HeldError{Owner: b.Owner}
		}
		if b.Organization != organization {
			return ErrWrongOrganization
		}
		if b.IsFinished {
			return ErrFinished
		}

		b.IsCheckedOut = true
		b.Owner = callerID
		b.Heartbeat = m.now()
		// Sessions always start at the head of the remaining documents.
		b.DocumentIndex = 0
		return tx.PutBatch(b)
	})
	if err != nil {
		return err
	}

	m.logger.Info("batch checked out",
		"batch", batchID, "owner", callerID, "organization", organization)
	return nil
}

// Release voluntarily gives up the lease, returning the batch to the
// assignable pool.
func (m *Manager) Release(ctx context.Context, batchID, organization string) error {
	err := m.store.RunTransaction(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(batchID)
		if err != nil {
			return err
		}
		if b.Organization != organization {
			return ErrWrongOrganization
		}
		if !b.IsCheckedOut {
			return ErrNotHeld
		}

		b.IsCheckedOut = false
		b.Owner = ""
		b.DocumentIndex = 0
		return tx.PutBatch(b)
	})
	if err != nil {
		return err
	}

	m.logger.Info("batch released", "batch", batchID, "organization", organization)
	return nil
}

// ForceRelease ends a session without caller validation. Used by the
// liveness sweep and the ops unlock path. The session's saved progress
// (documents, cursor) is left untouched; only the lease itself is cleared.
func (m *Manager) ForceRelease(ctx context.Context, batchID string) error {
	var owner string
	err := m.store.RunTransaction(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(batchID)
		if err != nil {
			return err
		}
		if !b.IsCheckedOut {
			return nil
		}
		owner = b.Owner

		b.IsCheckedOut = false
		b.Owner = ""
		return tx.PutBatch(b)
	})
	if err != nil {
		return err
	}

	if owner != "" {
		m.logger.Info("batch force-released", "batch", batchID, "owner", owner)
	}
	return nil
}

// Heartbeat refreshes the lease's liveness timestamp. Fails with ErrNotHeld
// when the lease has been reclaimed, signaling the session to reacquire.
func (m *Manager) Heartbeat(ctx context.Context, batchID, organization string) error {
	return m.store.RunTransaction(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(batchID)
		if err != nil {
			return err
		}
		if err := ValidateHeld(b, organization); err != nil {
			return err
		}

		b.Heartbeat = m.now()
		return tx.PutBatch(b)
	})
}
