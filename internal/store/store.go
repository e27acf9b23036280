// Package store provides persistence for batches, documents, and
// organization settings. The production implementation is backed by
// Firestore; an in-memory implementation with the same transaction
// semantics backs tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a transaction aborts due to contention with
// a concurrent writer. Callers retry via RunWithRetry; all other errors are
// surfaced immediately.
var ErrConflict = errors.New("transaction conflict")

// Store is the dependency-injected persistence client. Every state
// transition that reads-then-conditionally-writes a batch must run inside
// RunTransaction so concurrent transitions on the same batch are linearized.
type Store interface {
	// RunTransaction executes fn inside a single serializable transaction.
	// Writes staged through the Tx are committed only if fn returns nil.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	// GetBatch reads one batch outside a transaction.
	GetBatch(ctx context.Context, id string) (*types.Batch, error)

	// ListBatches returns all batches for an organization, oldest first.
	ListBatches(ctx context.Context, organization string) ([]*types.Batch, error)

	// ListCheckedOut returns every unfinished batch currently holding a
	// lease, across organizations. Used by the liveness sweep.
	ListCheckedOut(ctx context.Context) ([]*types.Batch, error)

	// CreateDocument stores a new document record.
	CreateDocument(ctx context.Context, d *types.Document) error

	// GetDocument reads one document.
	GetDocument(ctx context.Context, id string) (*types.Document, error)

	// PatchDocumentFields merges reviewer-edited values into the document's
	// fields and bumps its updated timestamp.
	PatchDocumentFields(ctx context.Context, id string, fields map[string]any, at time.Time) error

	// GetOrganization reads per-tenant settings. ErrNotFound means the
	// organization has no explicit settings; callers apply defaults.
	GetOrganization(ctx context.Context, name string) (*types.Organization, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Tx is the handle passed to a transaction body. Reads must precede writes;
// the Firestore implementation enforces this ordering.
type Tx interface {
	// GetBatch reads a batch within the transaction, taking a lock on it.
	GetBatch(id string) (*types.Batch, error)

	// FindAssignable returns the oldest batch for the organization that can
	// still accept documents, or ErrNotFound when every batch is full,
	// checked out, or finished.
	FindAssignable(organization string) (*types.Batch, error)

	// CreateBatch stages creation of a new batch record.
	CreateBatch(b *types.Batch) error

	// PutBatch stages a full overwrite of an existing batch record.
	PutBatch(b *types.Batch) error

	// MarkDocumentReviewed stages reviewed=true on a document.
	MarkDocumentReviewed(id string, at time.Time) error
}
