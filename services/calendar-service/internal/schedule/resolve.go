package schedule

import (
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
)

// ResolveInputs converts directory schedules into calculator inputs.
// Closed resources get an empty (invalid) span so they never contribute
// to the day; resources missing from the map stay absent so the default
// window applies downstream.
func ResolveInputs(schedules map[int64]DaySchedule) (map[int64]availability.Span, map[int64][]availability.Span) {
	windows := make(map[int64]availability.Span, len(schedules))
	blocked := make(map[int64][]availability.Span, len(schedules))
	for id, ds := range schedules {
		if ds.Closed {
			windows[id] = availability.Span{}
			continue
		}
		windows[id] = ds.Window
		if len(ds.Blocked) > 0 {
			blocked[id] = ds.Blocked
		}
	}
	return windows, blocked
}
