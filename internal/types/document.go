package types

import "time"

// Document is one extracted document under review. Documents are owned by
// reference: a batch lists document IDs, the records themselves live in
// their own collection and are never deleted by the batch lifecycle.
type Document struct {
	ID           string `firestore:"id" json:"id"`
	Organization string `firestore:"organization" json:"organization"`
	Filename     string `firestore:"filename" json:"filename"`

	// Extracted holds the machine-extracted field values as produced by the
	// extraction pipeline. Never mutated by this service.
	Extracted map[string]any `firestore:"extracted,omitempty" json:"extracted,omitempty"`

	// Fields holds reviewer-corrected values, patched on each progress save.
	Fields map[string]any `firestore:"fields,omitempty" json:"fields,omitempty"`

	// Reviewed flips to true exactly once, during batch finalization.
	Reviewed bool `firestore:"reviewed" json:"reviewed"`

	TimeCreated time.Time `firestore:"timeCreated" json:"time_created"`
	Updated     time.Time `firestore:"updated" json:"updated"`
}

// Organization carries per-tenant settings read by the batch lifecycle.
type Organization struct {
	Name string `firestore:"name" json:"name"`

	// MaxBatchSize bounds documents per batch. Zero or unset falls back to
	// the service default.
	MaxBatchSize int `firestore:"maxBatchSize,omitempty" json:"max_batch_size,omitempty"`

	// FieldSchema is an optional JSON schema; when set, ingested field values
	// and review patches are validated against it.
	FieldSchema string `firestore:"fieldSchema,omitempty" json:"field_schema,omitempty"`
}
