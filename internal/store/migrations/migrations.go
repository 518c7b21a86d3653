// Package migrations holds the embedded goose migrations for each store dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Dialect selects the migration set.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) goose() (goose.Dialect, bool) {
	switch d {
	case SQLite:
		return goose.DialectSQLite3, true
	case Postgres:
		return goose.DialectPostgres, true
	default:
		return "", false
	}
}

// FS returns the migration files of one dialect.
func FS(d Dialect) (fs.FS, error) {
	if _, ok := d.goose(); !ok {
		return nil, errors.NewConfigError("migrations", "unknown dialect "+string(d), nil)
	}
	return fs.Sub(files, string(d))
}

// Up applies every pending migration of the dialect and returns the number applied.
func Up(ctx context.Context, db *sql.DB, d Dialect) (int, error) {
	dialect, ok := d.goose()
	if !ok {
		return 0, errors.NewConfigError("migrations", "unknown dialect "+string(d), nil)
	}
	fsys, err := FS(d)
	if err != nil {
		return 0, err
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, errors.WrapResource("prepare", "migrations", string(d), err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, errors.WrapResource("apply", "migrations", string(d), err)
	}

	logger := logging.FromContext(ctx)
	for _, r := range results {
		logger.Debug().
			Int64("version", r.Source.Version).
			Str("dialect", string(d)).
			Dur("duration", r.Duration).
			Msg("migration applied")
	}
	return len(results), nil
}
