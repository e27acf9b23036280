// Package orgs reads per-organization settings consumed by the batch
// lifecycle: the batch capacity bound and the optional document field
// schema.
package orgs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ryanmcguirecode/batchdesk/internal/store"
)

// DefaultMaxBatchSize applies when an organization has no configured
// maximum batch size.
const DefaultMaxBatchSize = 100

// ErrInvalidFields is returned when a document's field values fail the
// organization's configured schema.
var ErrInvalidFields = errors.New("field values do not match organization schema")

// Service reads organization settings. Reads are fresh each time; settings
// changes take effect on the next operation.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an organization settings service.
func New(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// MaxBatchSize returns the organization's batch capacity bound. An
// organization with no settings record, or a zero configured size, falls
// back to DefaultMaxBatchSize.
func (s *Service) MaxBatchSize(ctx context.Context, organization string) (int, error) {
	o, err := s.store.GetOrganization(ctx, organization)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultMaxBatchSize, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read settings for %s: %w", organization, err)
	}
	if o.MaxBatchSize <= 0 {
		return DefaultMaxBatchSize, nil
	}
	return o.MaxBatchSize, nil
}

// ValidateFields checks field values against the organization's configured
// JSON schema, if any. Organizations without a schema accept any fields.
func (s *Service) ValidateFields(ctx context.Context, organization string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	o, err := s.store.GetOrganization(ctx, organization)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read settings for %s: %w", organization, err)
	}
	if o.FieldSchema == "" {
		return nil
	}

	schema, err := compileFieldSchema(o.FieldSchema)
	if err != nil {
		// A broken schema must not wedge ingestion; log and accept.
		s.logger.Warn("organization field schema is invalid, skipping validation",
			"organization", organization, "error", err)
		return nil
	}

	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFields, err)
	}
	return nil
}

func compileFieldSchema(raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.json", strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load field schema: %w", err)
	}
	schema, err := compiler.Compile("fields.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile field schema: %w", err)
	}
	return schema, nil
}
