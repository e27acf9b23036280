package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// FirestoreConfig holds settings for the Firestore-backed store.
type FirestoreConfig struct {
	ProjectID string

	// Collection names, defaulted when empty.
	BatchCollection        string
	DocumentCollection     string
	OrganizationCollection string
}

func (c *FirestoreConfig) applyDefaults() {
	if c.BatchCollection == "" {
		c.BatchCollection = "batches"
	}
	if c.DocumentCollection == "" {
		c.DocumentCollection = "documents"
	}
	if c.OrganizationCollection == "" {
		c.OrganizationCollection = "organizations"
	}
}

// Firestore is the production Store implementation. The client is
// constructed once at startup and injected into every component.
type Firestore struct {
	client *firestore.Client
	cfg    FirestoreConfig
}

// NewFirestore creates a Firestore-backed store for the given project.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore: project ID must be set")
	}
	cfg.applyDefaults()

	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Firestore{client: client, cfg: cfg}, nil
}

func (f *Firestore) batches() *firestore.CollectionRef {
	return f.client.Collection(f.cfg.BatchCollection)
}

func (f *Firestore) documents() *firestore.CollectionRef {
	return f.client.Collection(f.cfg.DocumentCollection)
}

func (f *Firestore) organizations() *firestore.CollectionRef {
	return f.client.Collection(f.cfg.OrganizationCollection)
}

// RunTransaction implements Store. Firestore's own transaction retries are
// disabled; contention surfaces as ErrConflict so the caller's retry policy
// (RunWithRetry) governs backoff instead.
func (f *Firestore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(&firestoreTx{f: f, tx: tx})
	}, firestore.MaxAttempts(1))
	if status.Code(err) == codes.Aborted {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (f *Firestore) GetBatch(ctx context.Context, id string) (*types.Batch, error) {
	snap, err := f.batches().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read batch %s: %w", id, err)
	}
	return batchFromSnap(snap)
}

func (f *Firestore) ListBatches(ctx context.Context, organization string) ([]*types.Batch, error) {
	iter := f.batches().
		Where("organization", "==", organization).
		OrderBy("timeCreated", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()
	return collectBatches(iter)
}

func (f *Firestore) ListCheckedOut(ctx context.Context) ([]*types.Batch, error) {
	iter := f.batches().
		Where("isCheckedOut", "==", true).
		Where("isFinished", "==", false).
		Documents(ctx)
	defer iter.Stop()
	return collectBatches(iter)
}

func (f *Firestore) CreateDocument(ctx context.Context, d *types.Document) error {
	if _, err := f.documents().Doc(d.ID).Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create document %s: %w", d.ID, err)
	}
	return nil
}

func (f *Firestore) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	snap, err := f.documents().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	var d types.Document
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return &d, nil
}

func (f *Firestore) PatchDocumentFields(ctx context.Context, id string, fields map[string]any, at time.Time) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: "fields." + k, Value: v})
	}
	updates = append(updates, firestore.Update{Path: "updated", Value: at})

	if _, err := f.documents().Doc(id).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to patch document %s: %w", id, err)
	}
	return nil
}

func (f *Firestore) GetOrganization(ctx context.Context, name string) (*types.Organization, error) {
	snap, err := f.organizations().Doc(name).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("organization %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read organization %s: %w", name, err)
	}
	var o types.Organization
	if err := snap.DataTo(&o); err != nil {
		return nil, fmt.Errorf("failed to decode organization %s: %w", name, err)
	}
	if o.Name == "" {
		o.Name = snap.Ref.ID
	}
	return &o, nil
}

func (f *Firestore) Ping(ctx context.Context) error {
	// Firestore has no dedicated health RPC; a bounded read stands in.
	iter := f.organizations().Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

// firestoreTx adapts *firestore.Transaction to the Tx interface.
type firestoreTx struct {
	f  *Firestore
	tx *firestore.Transaction
}

func (t *firestoreTx) GetBatch(id string) (*types.Batch, error) {
	snap, err := t.tx.Get(t.f.batches().Doc(id))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read batch %s: %w", id, err)
	}
	return batchFromSnap(snap)
}

func (t *firestoreTx) FindAssignable(organization string) (*types.Batch, error) {
	// Filtering on isFull rather than documentCount keeps the query
	// equality-only, so ordering by timeCreated stays legal. The count
	// bound is re-checked by the transaction body.
	query := t.f.batches().
		Where("organization", "==", organization).
		Where("isFull", "==", false).
		Where("isCheckedOut", "==", false).
		Where("isFinished", "==", false).
		OrderBy("timeCreated", firestore.Asc).
		Limit(1)

	iter := t.tx.Documents(query)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("no assignable batch for %s: %w", organization, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("assignable batch query failed: %w", err)
	}
	return batchFromSnap(snap)
}

func (t *firestoreTx) CreateBatch(b *types.Batch) error {
	if err := t.tx.Create(t.f.batches().Doc(b.BatchID), b); err != nil {
		return fmt.Errorf("failed to create batch %s: %w", b.BatchID, err)
	}
	return nil
}

func (t *firestoreTx) PutBatch(b *types.Batch) error {
	if err := t.tx.Set(t.f.batches().Doc(b.BatchID), b); err != nil {
		return fmt.Errorf("failed to write batch %s: %w", b.BatchID, err)
	}
	return nil
}

func (t *firestoreTx) MarkDocumentReviewed(id string, at time.Time) error {
	err := t.tx.Update(t.f.documents().Doc(id), []firestore.Update{
		{Path: "reviewed", Value: true},
		{Path: "updated", Value: at},
	})
	if err != nil {
		return fmt.Errorf("failed to mark document %s reviewed: %w", id, err)
	}
	return nil
}

func batchFromSnap(snap *firestore.DocumentSnapshot) (*types.Batch, error) {
	var b types.Batch
	if err := snap.DataTo(&b); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", snap.Ref.ID, err)
	}
	if b.BatchID == "" {
		b.BatchID = snap.Ref.ID
	}
	return &b, nil
}

func collectBatches(iter *firestore.DocumentIterator) ([]*types.Batch, error) {
	var out []*types.Batch
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("batch query failed: %w", err)
		}
		b, err := batchFromSnap(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
}
