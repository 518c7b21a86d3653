package branches

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/branchmap/internal/appcontext"
	pkgbranches "github.com/agentstation/branchmap/pkg/branches"
	"github.com/agentstation/branchmap/pkg/errors"
	"github.com/agentstation/branchmap/pkg/geo"
)

func mockApp(t *testing.T, format string) *appcontext.Mock {
	t.Helper()
	catalog, err := pkgbranches.New([]pkgbranches.Branch{
		{ID: 1, Name: "Riverside", Aliases: []string{"Rivera"}, Coordinate: &geo.Coordinate{Lat: 25, Lon: -100}},
		{ID: 2, Name: "Centrito Valle", Coordinate: &geo.Coordinate{Lat: 25.01, Lon: -100}},
		{ID: 7, Name: "Linda Vista", Classification: pkgbranches.ClassificationRemote},
	})
	require.NoError(t, err)
	return &appcontext.Mock{
		CatalogFunc:      func() (*pkgbranches.Catalog, error) { return catalog, nil },
		OutputFormatFunc: func() string { return format },
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBranchesTable(t *testing.T) {
	out, err := execute(t, NewCommand(mockApp(t, "table")))
	require.NoError(t, err)
	assert.Contains(t, out, "Riverside")
	assert.Contains(t, out, "Linda Vista")
	assert.NotContains(t, out, "Rivera")
}

func TestBranchesWide(t *testing.T) {
	out, err := execute(t, NewCommand(mockApp(t, "wide")))
	require.NoError(t, err)
	assert.Contains(t, out, "Rivera")
	assert.Contains(t, out, "25.000000,-100.000000")
}

func TestBranchesJSON(t *testing.T) {
	out, err := execute(t, NewCommand(mockApp(t, "json")))
	require.NoError(t, err)

	var list []pkgbranches.Branch
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 3)
	assert.Equal(t, 7, list[2].ID)
	assert.Equal(t, pkgbranches.ClassificationRemote, list[2].Classification)
}

func TestBranchesCatalogError(t *testing.T) {
	_, err := execute(t, NewCommand(&appcontext.Mock{}))
	assert.True(t, errors.IsNotFound(err))
}

func TestNearest(t *testing.T) {
	out, err := execute(t, NewNearestCommand(mockApp(t, "table")), "--lat", "25.001", "--lon", "-100")
	require.NoError(t, err)
	assert.Contains(t, out, "Riverside")
	assert.NotContains(t, out, "Centrito Valle")
}

func TestNearestAll(t *testing.T) {
	out, err := execute(t, NewNearestCommand(mockApp(t, "json")), "--lat", "25.001", "--lon", "-100", "--all")
	require.NoError(t, err)

	var matches []pkgbranches.Match
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Branch.ID)
	assert.Equal(t, 2, matches[1].Branch.ID)
	assert.InDelta(t, 0.111, matches[0].DistanceKm, 0.001)
}

func TestNearestOutsideCutoff(t *testing.T) {
	out, err := execute(t, NewNearestCommand(mockApp(t, "table")), "--lat", "25.5", "--lon", "-100")
	require.NoError(t, err)
	assert.Contains(t, out, "No branch within 3 km of 25.500000,-100.000000")

	out, err = execute(t, NewNearestCommand(mockApp(t, "json")), "--lat", "25.5", "--lon", "-100")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = execute(t, NewNearestCommand(mockApp(t, "json")), "--lat", "25.5", "--lon", "-100", "--max-km", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Centrito Valle")
}

func TestNearestValidation(t *testing.T) {
	_, err := execute(t, NewNearestCommand(mockApp(t, "table")), "--lat", "25")
	assert.True(t, errors.IsValidationError(err))

	_, err = execute(t, NewNearestCommand(mockApp(t, "table")), "--lat", "95", "--lon", "0")
	assert.True(t, errors.IsValidationError(err))
}
