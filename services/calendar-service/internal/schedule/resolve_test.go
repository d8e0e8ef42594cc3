package schedule

import (
	"testing"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
)

func TestResolveInputs(t *testing.T) {
	schedules := map[int64]DaySchedule{
		1: {Window: availability.Span{Start: 9 * 60, End: 17 * 60}},
		2: {Closed: true},
		3: {
			Window:  availability.Span{Start: 8 * 60, End: 12 * 60},
			Blocked: []availability.Span{{Start: 10 * 60, End: 11 * 60}},
		},
	}

	windows, blocked := ResolveInputs(schedules)

	if got := windows[1]; got.Start != 9*60 || got.End != 17*60 {
		t.Fatalf("open resource window: got %+v", got)
	}
	// Closed resources must appear with an invalid span; being absent
	// would re-enable the default window downstream.
	closed, ok := windows[2]
	if !ok {
		t.Fatal("closed resource missing from windows")
	}
	if closed.Valid() {
		t.Fatalf("closed resource should carry an invalid span, got %+v", closed)
	}
	if len(blocked[3]) != 1 || blocked[3][0].Start != 10*60 {
		t.Fatalf("blocked spans: got %+v", blocked[3])
	}
	if _, ok := blocked[1]; ok {
		t.Fatal("resource without blocks should not appear in blocked map")
	}
}

func TestResolveInputsOmitsUnknownResources(t *testing.T) {
	windows, blocked := ResolveInputs(map[int64]DaySchedule{})
	if len(windows) != 0 || len(blocked) != 0 {
		t.Fatalf("empty schedules should resolve to empty maps, got %v / %v", windows, blocked)
	}
}
