package branches

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/branchmap/internal/appcontext"
	"github.com/agentstation/branchmap/internal/cmd/output"
	pkgbranches "github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
)

// NearestFlags holds the nearest command flags.
type NearestFlags struct {
	Lat   float64
	Lon   float64
	MaxKm float64
	All   bool
}

// NewNearestCommand creates the nearest command.
func NewNearestCommand(app appcontext.Interface) *cobra.Command {
	flags := &NearestFlags{}
	cmd := &cobra.Command{
		Use:     "nearest",
		GroupID: "catalog",
		Short:   "Find the branch closest to a coordinate",
		Args:    cobra.NoArgs,
		Example: `  branchmap nearest --lat 25.6866 --lon -100.3161
  branchmap nearest --lat 25.6866 --lon -100.3161 --max-km 10 --all`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
				return errors.NewValidationError("lat/lon", nil, "both --lat and --lon are required")
			}
			coord := geo.Coordinate{Lat: flags.Lat, Lon: flags.Lon}
			if !coord.Valid() {
				return errors.NewValidationError("lat/lon", coord.String(), "is not a valid coordinate")
			}
			maxKm := app.MaxDistanceKm()
			if cmd.Flags().Changed("max-km") {
				maxKm = flags.MaxKm
			}

			catalog, err := app.Catalog()
			if err != nil {
				return err
			}
			index := pkgbranches.NewIndex(catalog)

			var matches []pkgbranches.Match
			if flags.All {
				matches = index.Within(coord, maxKm)
			} else {
				b, d, err := index.Nearest(coord, maxKm)
				if err != nil && !errors.IsNotFound(err) {
					return err
				}
				if err == nil {
					matches = []pkgbranches.Match{{Branch: b, DistanceKm: d}}
				}
			}

			format, err := output.ParseFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			switch format {
			case output.FormatJSON, output.FormatYAML:
				if matches == nil {
					matches = []pkgbranches.Match{}
				}
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), matches)
			}
			if len(matches) == 0 {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "No branch within %g km of %s\n", maxKm, coord)
				return err
			}
			return output.NewFormatter(output.FormatTable).Format(cmd.OutOrStdout(), output.MatchesData(matches))
		},
	}

	cmd.Flags().Float64Var(&flags.Lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&flags.Lon, "lon", 0, "longitude in decimal degrees")
	cmd.Flags().Float64Var(&flags.MaxKm, "max-km", 0, "distance cutoff in km (default from max_distance_km)")
	cmd.Flags().BoolVar(&flags.All, "all", false, "list every branch within the cutoff, nearest first")

	return cmd
}
