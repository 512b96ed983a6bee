// README: Live driver location record; one per driver, upsert semantics.
package tracking

import (
	"time"

	"mealdrop/internal/types"
)

const (
	// staleAfter is the freshness threshold; older readings are still
	// returned but flagged, never silently trusted.
	staleAfter = 5 * time.Minute
	// recordTTL is the storage-level expiry from the last update.
	recordTTL = time.Hour
)

type DriverLocation struct {
	DriverID     types.ID
	Position     types.Point
	Heading      *float64
	Speed        *float64
	Accuracy     *float64
	BatteryLevel *float64
	OrderID      *types.ID
	IsOnline     bool
	LastUpdated  time.Time
}

// Stale reports whether the reading is older than the freshness threshold.
func (l *DriverLocation) Stale(now time.Time) bool {
	return now.Sub(l.LastUpdated) > staleAfter
}

// Candidate is a driver considered for dispatch, with its straight-line
// distance from the restaurant.
type Candidate struct {
	DriverID   types.ID
	Position   types.Point
	DistanceKm float64
}
