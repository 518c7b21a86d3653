// Package validate implements the catalog validation command.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/branchmap/internal/appcontext"
	"github.com/agentstation/branchmap/internal/cmd/emoji"
	"github.com/agentstation/branchmap/pkg/branches"
)

// NewCommand creates the validate command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "validate",
		GroupID: "catalog",
		Short:   "Load and validate the branch reference data",
		Long: `Validate loads the configured branch catalog and checks every entry:
unique positive ids, known classifications, valid coordinates and an
explicit quota for special-quota branches. No sources are contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := app.Catalog()
			if err != nil {
				cmd.SilenceUsage = true
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", emoji.Error, err)
				return err
			}

			located := branches.NewIndex(catalog).Len()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s catalog is valid: %d branches, %d with coordinates, %d stop words\n",
				emoji.Success, catalog.Len(), located, len(catalog.StopWords()))
			return err
		},
	}
}
