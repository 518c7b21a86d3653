package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/internal/ingest"
	"github.com/agentstation/branchmap/internal/store"
	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	CatalogFunc          func() (*branches.Catalog, error)
	SourcesFunc          func() ([]ingest.Source, error)
	StoreFunc            func(ctx context.Context) (store.Store, error)
	ReconcileOptionsFunc func() ([]reconcile.Option, error)
	MaxDistanceKmFunc    func() float64
	LoggerFunc           func() *zerolog.Logger
	OutputFormatFunc     func() string
	VersionFunc          func() string
	CommitFunc           func() string
	DateFunc             func() string
	BuiltByFunc          func() string
}

var _ Interface = (*Mock)(nil)

// Catalog returns a catalog using the mock function or a not-found error.
func (m *Mock) Catalog() (*branches.Catalog, error) {
	if m.CatalogFunc != nil {
		return m.CatalogFunc()
	}
	return nil, errors.NewNotFoundError("catalog", "mock")
}

// Sources returns sources using the mock function or none.
func (m *Mock) Sources() ([]ingest.Source, error) {
	if m.SourcesFunc != nil {
		return m.SourcesFunc()
	}
	return nil, nil
}

// Store returns a store using the mock function or a configuration error.
func (m *Mock) Store(ctx context.Context) (store.Store, error) {
	if m.StoreFunc != nil {
		return m.StoreFunc(ctx)
	}
	return nil, errors.NewConfigError("store", "no store configured", nil)
}

// ReconcileOptions returns options using the mock function or none.
func (m *Mock) ReconcileOptions() ([]reconcile.Option, error) {
	if m.ReconcileOptionsFunc != nil {
		return m.ReconcileOptionsFunc()
	}
	return nil, nil
}

// MaxDistanceKm returns the cutoff using the mock function or the default.
func (m *Mock) MaxDistanceKm() float64 {
	if m.MaxDistanceKmFunc != nil {
		return m.MaxDistanceKmFunc()
	}
	return constants.DefaultMaxDistanceKm
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns the version using the mock function or "test".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "test"
}

// Commit returns the commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns the date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns the builder using the mock function or "test".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "test"
}
