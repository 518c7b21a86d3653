package constants_test

import (
	"fmt"
	"time"

	"github.com/agentstation/branchmap/pkg/constants"
)

// Example shows the calendar-day key used to correlate inspections.
func Example() {
	at := time.Date(2025, 6, 1, 18, 45, 0, 0, time.UTC)
	fmt.Println(at.Format(constants.DayLayout))
	fmt.Printf("%.1f km\n", constants.DefaultMaxDistanceKm)

	// Output:
	// 2025-06-01
	// 3.0 km
}
