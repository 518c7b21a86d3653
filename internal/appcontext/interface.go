// Package appcontext provides the shared application context interface
// used by all commands. This eliminates interface duplication across
// command packages and provides a single source of truth for app dependencies.
package appcontext

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/internal/ingest"
	"github.com/agentstation/branchmap/internal/store"
	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// Interface defines the application context interface that commands need.
// The App struct from cmd/branchmap/app implements it; tests use Mock.
type Interface interface {
	// Catalog returns the branch catalog, loading it on first use.
	Catalog() (*branches.Catalog, error)

	// Sources returns the configured inspection sources in configuration
	// order: spreadsheets as listed, then the API.
	Sources() ([]ingest.Source, error)

	// Store opens the configured outcome store. The app owns it and closes
	// it on shutdown.
	Store(ctx context.Context) (store.Store, error)

	// ReconcileOptions returns the reconciler options derived from configuration.
	ReconcileOptions() ([]reconcile.Option, error)

	// MaxDistanceKm returns the configured coordinate cutoff.
	MaxDistanceKm() float64

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, etc).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
