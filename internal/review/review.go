// Package review persists reviewer progress through a checked-out batch
// and performs full or partial finalization.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
)

// ErrInvalidIndex is returned when the document index falls outside the
// batch's document list.
var ErrInvalidIndex = errors.New("document index out of range")

// ErrWrongDocument is returned when the document ID does not match the
// batch's document at the given index.
var ErrWrongDocument = errors.New("document does not match batch position")

// Engine saves per-document progress and finalizes batches.
type Engine struct {
	store  store.Store
	orgs   *orgs.Service
	logger *slog.Logger
	now    func() time.Time
}

// New creates a progress and finalization engine.
func New(s store.Store, o *orgs.Service, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, orgs: o, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SaveProgress records the reviewer's position in a checked-out batch and
// applies edited field values to the document at that position. The batch
// update and the document patch are two separate writes; each succeeds or
// fails cleanly on its own. Saving also refreshes the lease heartbeat, so
// an actively reviewing session is never swept.
func (e *Engine) SaveProgress(ctx context.Context, batchID, organization string, index int, documentID string, fields map[string]any) error {
	if err := e.orgs.ValidateFields(ctx, organization, fields); err != nil {
		return err
	}

	now := e.now()
	err := e.store.RunTransaction(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(batchID)
		if err != nil {
			return err
		}
		if err := lease.ValidateHeld(b, organization); err != nil {
			return err
		}
		if index < 0 || index >= len(b.Documents) {
			return fmt.Errorf("%w: index %d, batch has %d documents", ErrInvalidIndex, index, len(b.Documents))
		}
		if b.Documents[index] != documentID {
			return fmt.Errorf("%w: %s at index %d", ErrWrongDocument, documentID, index)
		}

		b.DocumentIndex = index
		b.Heartbeat = now
		return tx.PutBatch(b)
	})
	if err != nil {
		return err
	}

	if len(fields) > 0 {
		if err := e.store.PatchDocumentFields(ctx, documentID, fields, now); err != nil {
			return err
		}
	}
	return nil
}

// Finalize completes review of a checked-out batch.
//
// Full finalize marks every referenced document reviewed and closes the
// batch terminally. Partial finalize ("save and exit") marks only the
// documents already stepped through — the first documentIndex+1 — then
// truncates the batch to the remaining suffix and returns it to the
// assignable pool, so the reviewer keeps approved work without blocking
// others from the remainder.
func (e *Engine) Finalize(ctx context.Context, batchID, organization string, partial bool) error {
	maxBatchSize, err := e.orgs.MaxBatchSize(ctx, organization)
	if err != nil {
		return err
	}

	now := e.now()
	err = e.store.RunTransaction(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(batchID)
		if err != nil {
			return err
		}
		if err := lease.ValidateHeld(b, organization); err != nil {
			return err
		}

		if !partial {
			for _, id := range b.Documents {
				if err := tx.MarkDocumentReviewed(id, now); err != nil {
					return err
				}
			}
			b.IsCheckedOut = false
			b.Owner = ""
			b.IsFinished = true
			b.TimeFinished = now
			return tx.PutBatch(b)
		}

		consumed := b.DocumentIndex + 1
		if consumed > len(b.Documents) {
			consumed = len(b.Documents)
		}
		for _, id := range b.Documents[:consumed] {
			if err := tx.MarkDocumentReviewed(id, now); err != nil {
				return err
			}
		}

		remainder := make([]string, len(b.Documents)-consumed)
		copy(remainder, b.Documents[consumed:])
		b.Documents = remainder
		b.DocumentCount -= consumed
		b.DocumentIndex = 0
		b.IsFull = b.DocumentCount >= maxBatchSize
		b.IsCheckedOut = false
		b.Owner = ""
		return tx.PutBatch(b)
	})
	if err != nil {
		return err
	}

	e.logger.Info("batch finalized",
		"batch", batchID, "organization", organization, "partial", partial)
	return nil
}
