// Package svcctx provides service injection via request context. It is
// separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/ryanmcguirecode/batchdesk/internal/assign"
	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/review"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/sweeper"
)

// Services holds the core services that flow through context. Handlers
// extract what they need via the individual extractors.
type Services struct {
	Store    store.Store
	Assigner *assign.Engine
	Leases   *lease.Manager
	Review   *review.Engine
	Sweeper  *sweeper.Sweeper
	Orgs     *orgs.Service
	Logger   *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the store from context.
func StoreFrom(ctx context.Context) store.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// AssignerFrom extracts the assignment engine from context.
func AssignerFrom(ctx context.Context) *assign.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Assigner
	}
	return nil
}

// LeasesFrom extracts the lease manager from context.
func LeasesFrom(ctx context.Context) *lease.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Leases
	}
	return nil
}

// ReviewFrom extracts the progress and finalization engine from context.
func ReviewFrom(ctx context.Context) *review.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Review
	}
	return nil
}

// SweeperFrom extracts the liveness sweeper from context.
func SweeperFrom(ctx context.Context) *sweeper.Sweeper {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sweeper
	}
	return nil
}

// OrgsFrom extracts the organization settings service from context.
func OrgsFrom(ctx context.Context) *orgs.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orgs
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
