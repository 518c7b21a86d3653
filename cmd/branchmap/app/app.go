// Package app provides the application context and dependency management
// for the branchmap CLI. It centralizes configuration, dependency injection,
// and lifecycle management.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/branchmap/internal/appcontext"
	"github.com/agentstation/branchmap/internal/ingest"
	"github.com/agentstation/branchmap/internal/sources/api"
	"github.com/agentstation/branchmap/internal/sources/spreadsheet"
	"github.com/agentstation/branchmap/internal/store"
	"github.com/agentstation/branchmap/internal/store/postgres"
	"github.com/agentstation/branchmap/internal/store/sqlite"
	"github.com/agentstation/branchmap/internal/transport"
	"github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/inspections"
	"github.com/agentstation/branchmap/pkg/quota"
	"github.com/agentstation/branchmap/pkg/reconcile"
	"github.com/agentstation/branchmap/pkg/resolver"
)

// App represents the branchmap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Lazily opened resources
	mu      sync.Mutex
	catalog *branches.Catalog
	store   store.Store
}

var _ appcontext.Interface = (*App)(nil)

// New creates a new App instance with the given version information.
// The app is initialized with configuration from the environment and the
// default config file; functional options can replace any of it.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// MaxDistanceKm returns the configured coordinate cutoff.
func (a *App) MaxDistanceKm() float64 {
	return a.config.MaxDistanceKm
}

// Catalog loads the branch catalog on first use and caches it.
func (a *App) Catalog() (*branches.Catalog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.catalog != nil {
		return a.catalog, nil
	}
	if a.config.CatalogPath == "" {
		return nil, errors.NewConfigError("catalog", "catalog path is required", nil)
	}

	c, err := branches.Load(a.config.CatalogPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("path", a.config.CatalogPath).Int("branches", c.Len()).Msg("catalog loaded")
	a.catalog = c
	return c, nil
}

// Sources builds the configured inspection sources: spreadsheets in listed
// order, then the API when a URL is set.
func (a *App) Sources() ([]ingest.Source, error) {
	var sources []ingest.Source
	for _, path := range a.config.Spreadsheets {
		var opts []spreadsheet.Option
		if a.config.Sheet != "" {
			opts = append(opts, spreadsheet.WithSheet(a.config.Sheet))
		}
		sources = append(sources, spreadsheet.New(path, opts...))
	}

	if a.config.API.URL != "" {
		src, err := api.New(api.Config{
			URL:           a.config.API.URL,
			Token:         a.config.API.Token,
			Auth:          a.config.API.Auth,
			PageSize:      a.config.API.PageSize,
			RatePerSecond: a.config.API.RatePerSecond,
		}, transport.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ReconcileOptions derives the reconciler options from configuration.
func (a *App) ReconcileOptions() ([]reconcile.Option, error) {
	loc, err := time.LoadLocation(a.config.Timezone)
	if err != nil {
		return nil, errors.NewConfigError("timezone", "unknown timezone "+a.config.Timezone, err)
	}

	opts := []reconcile.Option{
		reconcile.WithLogger(a.logger),
		reconcile.WithNormalizer(inspections.NewNormalizer(inspections.WithLocation(loc))),
		reconcile.WithResolverOptions(
			resolver.WithMaxDistance(a.config.MaxDistanceKm),
			resolver.WithStopWords(a.config.StopWords...),
			resolver.WithHintFromLabel(a.config.HintFromLabel),
		),
	}

	switch {
	case a.config.PeriodStart != "" || a.config.PeriodEnd != "":
		p, err := quota.ParseDays(a.config.PeriodStart, a.config.PeriodEnd, loc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconcile.WithPeriod(p))
	case a.config.PeriodYear != 0:
		opts = append(opts, reconcile.WithPeriod(quota.Year(a.config.PeriodYear, loc)))
	}
	return opts, nil
}

// Store opens the configured store on first use.
func (a *App) Store(ctx context.Context) (store.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	var (
		s   store.Store
		err error
	)
	switch a.config.Store.Driver {
	case store.DriverSQLite:
		s, err = sqlite.Open(ctx, a.config.Store.DSN)
	case store.DriverPostgres:
		s, err = postgres.Open(ctx, a.config.Store.DSN)
	case "":
		return nil, errors.NewConfigError("store", "store.driver is not set", nil)
	default:
		return nil, errors.NewConfigError("store", "unknown store.driver "+a.config.Store.Driver, nil)
	}
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// Shutdown releases resources opened during the command.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to close store during shutdown")
	}
	return err
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithCatalog sets a preloaded catalog (useful for testing).
func WithCatalog(c *branches.Catalog) Option {
	return func(a *App) error {
		a.catalog = c
		return nil
	}
}

// WithStore sets an already opened store (useful for testing).
func WithStore(s store.Store) Option {
	return func(a *App) error {
		a.store = s
		return nil
	}
}
