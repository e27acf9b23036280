package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ryanmcguirecode/batchdesk/internal/types"
)

// Memory is an in-memory Store with the same transaction semantics as the
// Firestore implementation: transactions are strictly serialized and their
// writes commit atomically or not at all. It backs unit tests and the
// --memory development mode.
type Memory struct {
	mu            sync.Mutex
	batches       map[string]*types.Batch
	documents     map[string]*types.Document
	organizations map[string]*types.Organization

	// pendingConflicts makes the next n transaction commits fail with
	// ErrConflict, exercising callers' retry paths.
	pendingConflicts int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		batches:       make(map[string]*types.Batch),
		documents:     make(map[string]*types.Document),
		organizations: make(map[string]*types.Organization),
	}
}

// InjectConflicts makes the next n transactions abort with ErrConflict
// after running their body, discarding staged writes.
func (m *Memory) InjectConflicts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingConflicts += n
}

// SeedOrganization stores organization settings directly.
func (m *Memory) SeedOrganization(o *types.Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.organizations[o.Name] = copyOrganization(o)
}

// SeedBatch stores a batch directly, bypassing transactions.
func (m *Memory) SeedBatch(b *types.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[b.BatchID] = copyBatch(b)
}

// SeedDocument stores a document directly, bypassing transactions.
func (m *Memory) SeedDocument(d *types.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[d.ID] = copyDocument(d)
}

func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		m:       m,
		staged:  make(map[string]*types.Batch),
		created: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}

	if m.pendingConflicts > 0 {
		m.pendingConflicts--
		return fmt.Errorf("%w: simulated contention", ErrConflict)
	}

	// Commit staged writes.
	for id, b := range tx.staged {
		m.batches[id] = b
	}
	for _, r := range tx.reviewed {
		d, ok := m.documents[r.id]
		if !ok {
			continue
		}
		d.Reviewed = true
		d.Updated = r.at
	}
	return nil
}

func (m *Memory) GetBatch(ctx context.Context, id string) (*types.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return copyBatch(b), nil
}

func (m *Memory) ListBatches(ctx context.Context, organization string) ([]*types.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Batch
	for _, b := range m.batches {
		if b.Organization == organization {
			out = append(out, copyBatch(b))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (m *Memory) ListCheckedOut(ctx context.Context) ([]*types.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Batch
	for _, b := range m.batches {
		if b.IsCheckedOut && !b.IsFinished {
			out = append(out, copyBatch(b))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (m *Memory) CreateDocument(ctx context.Context, d *types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[d.ID]; ok {
		return fmt.Errorf("document %s already exists", d.ID)
	}
	m.documents[d.ID] = copyDocument(d)
	return nil
}

func (m *Memory) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return copyDocument(d), nil
}

func (m *Memory) PatchDocumentFields(ctx context.Context, id string, fields map[string]any, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if d.Fields == nil {
		d.Fields = make(map[string]any, len(fields))
	}
	maps.Copy(d.Fields, fields)
	d.Updated = at
	return nil
}

func (m *Memory) GetOrganization(ctx context.Context, name string) (*types.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.organizations[name]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", name, ErrNotFound)
	}
	return copyOrganization(o), nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

type reviewedMark struct {
	id string
	at time.Time
}

// memoryTx buffers writes until commit. Reads see staged writes from the
// same transaction.
type memoryTx struct {
	m        *Memory
	staged   map[string]*types.Batch
	created  map[string]bool
	reviewed []reviewedMark
}

func (t *memoryTx) GetBatch(id string) (*types.Batch, error) {
	if b, ok := t.staged[id]; ok {
		return copyBatch(b), nil
	}
	b, ok := t.m.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return copyBatch(b), nil
}

func (t *memoryTx) FindAssignable(organization string) (*types.Batch, error) {
	var candidates []*types.Batch
	seen := make(map[string]bool)
	for id, b := range t.staged {
		seen[id] = true
		if b.Organization == organization && b.Assignable() {
			candidates = append(candidates, copyBatch(b))
		}
	}
	for id, b := range t.m.batches {
		if seen[id] {
			continue
		}
		if b.Organization == organization && b.Assignable() {
			candidates = append(candidates, copyBatch(b))
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no assignable batch for %s: %w", organization, ErrNotFound)
	}
	sortByCreation(candidates)
	return candidates[0], nil
}

func (t *memoryTx) CreateBatch(b *types.Batch) error {
	if _, ok := t.m.batches[b.BatchID]; ok {
		return fmt.Errorf("batch %s already exists", b.BatchID)
	}
	if t.created[b.BatchID] {
		return fmt.Errorf("batch %s already exists", b.BatchID)
	}
	t.created[b.BatchID] = true
	t.staged[b.BatchID] = copyBatch(b)
	return nil
}

func (t *memoryTx) PutBatch(b *types.Batch) error {
	t.staged[b.BatchID] = copyBatch(b)
	return nil
}

func (t *memoryTx) MarkDocumentReviewed(id string, at time.Time) error {
	t.reviewed = append(t.reviewed, reviewedMark{id: id, at: at})
	return nil
}

func sortByCreation(batches []*types.Batch) {
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].TimeCreated.Equal(batches[j].TimeCreated) {
			return batches[i].BatchID < batches[j].BatchID
		}
		return batches[i].TimeCreated.Before(batches[j].TimeCreated)
	})
}

func copyBatch(b *types.Batch) *types.Batch {
	out := *b
	out.Documents = slices.Clone(b.Documents)
	return &out
}

func copyDocument(d *types.Document) *types.Document {
	out := *d
	out.Extracted = maps.Clone(d.Extracted)
	out.Fields = maps.Clone(d.Fields)
	return &out
}

func copyOrganization(o *types.Organization) *types.Organization {
	out := *o
	return &out
}
