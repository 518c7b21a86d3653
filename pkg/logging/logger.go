// Package logging provides structured logging for branchmap using zerolog.
// Console output is used when stderr is a terminal, JSON otherwise.
//
// Loggers travel in the context. A reconciliation run tags its logger with
// the run id, and ingestion tags each source's logger with the source name,
// so every line can be traced back to the run and file it came from:
//
//	ctx = logging.WithRun(ctx, report.RunID)
//	logging.FromContext(ctx).Debug().Str(logging.FieldSubmission, id).Msg("resolved by coordinate")
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Field keys shared by every component that logs about runs, sources,
// submissions and branches.
const (
	FieldRun        = "run_id"
	FieldSource     = "source"
	FieldSubmission = "submission_id"
	FieldBranch     = "branch_id"
)

var defaultLogger = newDefaultLogger()

func newDefaultLogger() zerolog.Logger {
	var w io.Writer = os.Stderr
	if stderrIsTerminal() && os.Getenv("LOG_FORMAT") != "json" {
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return zerolog.New(w).Level(parseLevel(os.Getenv("LOG_LEVEL"))).With().Timestamp().Logger()
}

// Default returns the process-wide logger used when a context carries none.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Warn starts a warning on the default logger, for code paths with no context.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
