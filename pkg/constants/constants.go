// Package constants provides shared constants used throughout the branchmap codebase.
// This includes matching thresholds, default quotas, timeouts and file permissions
// that should be consistent across the application.
package constants

import "time"

// Matching constants
const (
	// DefaultMaxDistanceKm is the default cutoff for coordinate matches
	DefaultMaxDistanceKm = 3.0

	// DistanceTieEpsilonKm is the window within which two distances are considered equal
	DistanceTieEpsilonKm = 1e-9

	// EarthRadiusKm is the mean Earth radius used by the Haversine formula
	EarthRadiusKm = 6371.0088

	// MinSignificantTokenLength is the shortest token that counts for text-hint matching
	MinSignificantTokenLength = 3
)

// DefaultStopWords are generic words in branch names that never identify a
// branch on their own. Text-hint matching always ignores them; the reference
// data and configuration add to the list.
var DefaultStopWords = []string{
	"sucursal", "sucursales", "branch", "branches",
	"grupo", "group", "restaurante", "restaurant",
	"tienda", "store", "unidad", "local",
}

// Quota constants define the yearly inspection quota per classification
const (
	// InRegionOperationalQuota is the operational quota for in-region branches
	InRegionOperationalQuota = 4

	// InRegionSafetyQuota is the safety quota for in-region branches
	InRegionSafetyQuota = 4

	// RemoteOperationalQuota is the operational quota for remote branches
	RemoteOperationalQuota = 2

	// RemoteSafetyQuota is the safety quota for remote branches
	RemoteSafetyQuota = 2
)

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the inspection API
	DefaultHTTPTimeout = 30 * time.Second

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of retry attempts for failed requests
	MaxRetries = 3

	// DefaultPageSize is the default number of records per API page
	DefaultPageSize = 100

	// MaxPages guards against an API that never stops paginating
	MaxPages = 10000

	// DefaultRatePerSecond is the default request rate against the inspection API
	DefaultRatePerSecond = 5
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Format constants
const (
	// DayLayout formats the calendar day used for correlation
	DayLayout = "2006-01-02"

	// TimeFormatFilename is the format used in generated filenames
	TimeFormatFilename = "20060102-150405"
)
