// Package schedule resolves per-resource day schedules from the
// directory service. Resources the directory does not know fall back to
// the default working window; transport failures surface to the caller,
// so defaults are never mistaken for real availability.
package schedule

import (
	"context"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
)

// DaySchedule is one resource's effective schedule for a single day.
type DaySchedule struct {
	Window  availability.Span
	Blocked []availability.Span
	Closed  bool
}

type Provider interface {
	// DaySchedules returns schedules keyed by resource id for the given
	// date (YYYY-MM-DD). Resources unknown to the directory are absent
	// from the map.
	DaySchedules(ctx context.Context, portalID string, resourceIDs []int64, date string) (map[int64]DaySchedule, error)
}
