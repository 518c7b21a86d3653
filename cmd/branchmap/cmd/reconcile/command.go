// Package reconcile implements the reconcile command: ingest every configured
// source, resolve events to branches and report quota compliance.
package reconcile

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/branchmap/internal/appcontext"
	"github.com/agentstation/branchmap/internal/cmd/output"
	"github.com/agentstation/branchmap/internal/export"
	"github.com/agentstation/branchmap/internal/ingest"
	"github.com/agentstation/branchmap/internal/store"
	"github.com/agentstation/branchmap/pkg/constants"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/logging"
	"github.com/agentstation/branchmap/pkg/reconcile"
)

// ErrUnresolved is returned with --fail-on-unresolved when events still need
// manual validation.
var ErrUnresolved = errors.New("events need manual validation")

// Flags holds the reconcile command flags.
type Flags struct {
	Out              string
	Persist          bool
	FailOnUnresolved bool
	Concurrency      int
}

// NewCommand creates the reconcile command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	flags := &Flags{}
	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "core",
		Short:   "Resolve inspections to branches and check quotas",
		Long: `Reconcile fetches inspection submissions from every configured source,
assigns each one to a branch and reports per-branch quota compliance.

Sources are read concurrently and merged in configuration order: the
spreadsheets as listed, then the API.`,
		Example: `  branchmap reconcile                               # Table report on stdout
  branchmap reconcile --format json                 # Full report as JSON
  branchmap reconcile --format xlsx --out 2025.xlsx # Workbook for the operations team
  branchmap reconcile --persist --fail-on-unresolved`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Out, "out", "", "write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&flags.Persist, "persist", false, "upsert outcomes into the configured store")
	cmd.Flags().BoolVar(&flags.FailOnUnresolved, "fail-on-unresolved", false, "exit non-zero when events need manual validation")
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "maximum sources fetched at once (0 = all)")

	return cmd
}

func run(cmd *cobra.Command, app appcontext.Interface, flags *Flags) error {
	ctx := cmd.Context()
	logger := app.Logger()

	format, err := output.ParseFormat(app.OutputFormat())
	if err != nil {
		return err
	}
	if format.Binary() && flags.Out == "" {
		return errors.NewValidationError("out", "", fmt.Sprintf("--out is required for %s output", format))
	}

	catalog, err := app.Catalog()
	if err != nil {
		return err
	}
	sources, err := app.Sources()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errors.NewConfigError("sources", "no spreadsheets or api.url configured", nil)
	}

	fetched, err := ingest.Fetch(ctx, sources, ingest.WithConcurrency(flags.Concurrency))
	if err != nil {
		return err
	}

	opts, err := app.ReconcileOptions()
	if err != nil {
		return err
	}
	reconciler, err := reconcile.New(catalog, opts...)
	if err != nil {
		return err
	}
	report, err := reconciler.Run(ctx, fetched.Records)
	if err != nil {
		return err
	}
	logger.Info().
		Str(logging.FieldRun, report.RunID).
		Int("events", report.Summary.Events).
		Int("unresolved", len(report.NeedsManualValidation())).
		Msg("reconciliation finished")

	if flags.Persist {
		s, err := app.Store(ctx)
		if err != nil {
			return err
		}
		if err := store.Persist(ctx, s, report); err != nil {
			return err
		}
		logger.Info().Str(logging.FieldRun, report.RunID).Msg("outcomes persisted")
	}

	if err := write(cmd.OutOrStdout(), flags.Out, format, report); err != nil {
		return err
	}

	if flags.FailOnUnresolved {
		if n := len(report.NeedsManualValidation()); n > 0 {
			cmd.SilenceUsage = true
			return fmt.Errorf("%w: %d unresolved", ErrUnresolved, n)
		}
	}
	return nil
}

// write renders the report to path, or to stdout when path is empty.
func write(stdout io.Writer, path string, format output.Format, report *reconcile.Report) (err error) {
	w := stdout
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions) //nolint:gosec // path comes from a flag
		if err != nil {
			return errors.WrapIO("create", path, err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.WrapIO("close", path, cerr)
			}
		}()
		w = f
	}

	switch format {
	case output.FormatMarkdown:
		return export.Markdown(w, report)
	case output.FormatXLSX:
		return export.XLSX(w, report)
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(format).Format(w, report)
	case output.FormatWide:
		return output.WriteReport(w, report, true)
	default:
		return output.WriteReport(w, report, false)
	}
}
