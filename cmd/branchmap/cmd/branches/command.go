// Package branches implements the catalog listing and nearest-branch commands.
package branches

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/branchmap/internal/appcontext"
	"github.com/agentstation/branchmap/internal/cmd/output"
)

// NewCommand creates the branches command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "branches",
		GroupID: "catalog",
		Short:   "List the branch catalog",
		Aliases: []string{"branch", "ls"},
		Args:    cobra.NoArgs,
		Example: `  branchmap branches               # ID, name, classification and quota
  branchmap branches --format wide # Adds coordinates and aliases`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := app.Catalog()
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			list := catalog.All()

			var data any = list
			switch format {
			case output.FormatTable, output.FormatWide, output.FormatMarkdown, output.FormatXLSX, "":
				data = output.BranchesData(list, format == output.FormatWide)
			}
			app.Logger().Debug().Int("branches", len(list)).Msg("catalog listed")
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}
