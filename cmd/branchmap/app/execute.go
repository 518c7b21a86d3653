package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/branchmap/pkg/logging"
)

// Execute runs the branchmap CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "branchmap",
		Short:   "Inspection branch resolution and quota reconciliation",
		Version: a.version,
		Long: `Branchmap reconciles restaurant inspection submissions from spreadsheet
exports and the inspections API against the canonical branch catalog.

Every submission is assigned to a branch with a confidence tier (exact label,
coordinate match, same-day correlation or text hint) and every branch is
checked against its yearly operational and safety quota.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "catalog",
		Title: "Catalog Commands:",
	})

	rootCmd.PersistentFlags().String("config", "", "config file (default is $HOME/.branchmap.yaml or ./.branchmap.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, wide, json, yaml, markdown, xlsx")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.PersistentFlags().String("catalog", "", "branch reference data (YAML)")
	rootCmd.PersistentFlags().StringSlice("spreadsheet", nil, "inspection spreadsheet (.xlsx), repeatable")
	rootCmd.PersistentFlags().Int("year", 0, "reporting year (default: current year)")
	rootCmd.PersistentFlags().Float64("max-distance-km", 0, "coordinate match cutoff in km")

	rootCmd.SetVersionTemplate("branchmap {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	if flags.Changed("config") {
		config, err := LoadConfig(mustGetString(cmd, "config"))
		if err != nil {
			return err
		}
		a.config = config
	}

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		mustGetString(cmd, "format"),
		mustGetString(cmd, "log-level"),
	)
	if flags.Changed("catalog") {
		a.config.CatalogPath = mustGetString(cmd, "catalog")
	}
	if flags.Changed("spreadsheet") {
		paths, _ := flags.GetStringSlice("spreadsheet")
		a.config.Spreadsheets = paths
	}
	if flags.Changed("year") {
		year, _ := flags.GetInt("year")
		a.config.PeriodYear = year
		a.config.PeriodStart, a.config.PeriodEnd = "", ""
	}
	if flags.Changed("max-distance-km") {
		km, _ := flags.GetFloat64("max-distance-km")
		a.config.MaxDistanceKm = km
	}

	logger := NewLogger(a.config)
	a.logger = &logger
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(a.CreateReconcileCommand())

	// Catalog commands
	rootCmd.AddCommand(a.CreateBranchesCommand())
	rootCmd.AddCommand(a.CreateNearestCommand())
	rootCmd.AddCommand(a.CreateValidateCommand())

	// Utility commands
	rootCmd.AddCommand(a.CreateVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // Ignoring write error since we're exiting anyway
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
