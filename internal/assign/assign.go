// Package assign routes newly ingested documents into batches. Batches are
// a bounded shared resource written by many concurrent ingestions; a plain
// read-then-write would let two writers both see room for one more document
// and overflow the bound. Each assignment therefore runs as a single
// read-modify-write transaction, retried on contention.
package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// Engine appends documents to batches with spare capacity, creating new
// batches lazily. Oldest-first fill: older batches finish before new ones
// open.
type Engine struct {
	store  store.Store
	orgs   *orgs.Service
	retry  store.RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// New creates an assignment engine.
func New(s store.Store, o *orgs.Service, retry store.RetryPolicy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  s,
		orgs:   o,
		retry:  retry,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Assign places a document into a batch for its organization. Each call
// appends exactly once. On transaction contention the operation retries
// with backoff; exhausting the retry budget surfaces the failure so the
// ingestion pipeline can follow up — the document is never silently
// dropped.
func (e *Engine) Assign(ctx context.Context, documentID, organization string) error {
	if documentID == "" {
		return errors.New("document ID is required")
	}
	if organization == "" {
		return errors.New("organization is required")
	}

	maxBatchSize, err := e.orgs.MaxBatchSize(ctx, organization)
	if err != nil {
		return err
	}

	var batchID string
	err = store.RunWithRetry(ctx, e.store, e.retry, func(tx store.Tx) error {
		b, err := tx.FindAssignable(organization)
		created := false
		switch {
		case errors.Is(err, store.ErrNotFound):
			b = e.newBatch(organization)
			created = true
		case err != nil:
			return err
		}

		// The query filters on isFull; the count bound is re-checked here
		// in case the organization's maximum shrank after the batch opened.
		if !created && b.DocumentCount >= maxBatchSize {
			b.IsFull = true
			if err := tx.PutBatch(b); err != nil {
				return err
			}
			b = e.newBatch(organization)
			created = true
		}

		b.Documents = append(b.Documents, documentID)
		b.DocumentCount++
		b.IsFull = b.DocumentCount >= maxBatchSize
		batchID = b.BatchID

		if created {
			return tx.CreateBatch(b)
		}
		return tx.PutBatch(b)
	})
	if err != nil {
		return fmt.Errorf("failed to assign document %s: %w", documentID, err)
	}

	e.logger.Info("document assigned",
		"document", documentID, "batch", batchID, "organization", organization)
	return nil
}

func (e *Engine) newBatch(organization string) *types.Batch {
	return &types.Batch{
		BatchID:      uuid.NewString(),
		Organization: organization,
		Documents:    []string{},
		TimeCreated:  e.now(),
	}
}
