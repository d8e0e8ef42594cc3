package availability

import (
	"reflect"
	"testing"
	"time"
)

func TestComputeSlots_DefaultDayIsTwelveHourlySlots(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	slots := ComputeSlots(day, []int64{7}, nil, nil, nil, DefaultConfig())
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day.Add(8 * time.Hour)) {
		t.Fatalf("expected first slot 08:00, got %s", slots[0].Start.Format(time.RFC3339))
	}
	if !slots[11].End.Equal(day.Add(20 * time.Hour)) {
		t.Fatalf("expected last slot to end 20:00, got %s", slots[11].End.Format(time.RFC3339))
	}
	for i, s := range slots {
		if !s.Available {
			t.Fatalf("slot %d unexpectedly unavailable", i)
		}
		if len(s.Resources) != 1 || s.Resources[0] != 7 {
			t.Fatalf("slot %d resources = %v, want [7]", i, s.Resources)
		}
	}
}

func TestComputeSlots_ContiguousCoverageNoGaps(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	slots := ComputeSlots(day, []int64{1, 2}, map[int64]Span{
		1: {Start: 9 * 60, End: 17 * 60},
		2: {Start: 8 * 60, End: 20 * 60},
	}, nil, nil, DefaultConfig())

	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if !slots[0].Start.Equal(day.Add(8 * time.Hour)) {
		t.Fatalf("union should start at earliest window start, got %s", slots[0].Start.Format(time.RFC3339))
	}
	if !slots[len(slots)-1].End.Equal(day.Add(20 * time.Hour)) {
		t.Fatalf("union should end at latest window end, got %s", slots[len(slots)-1].End.Format(time.RFC3339))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.Equal(slots[i-1].End) {
			t.Fatalf("gap between slot %d and %d", i-1, i)
		}
	}
}

func TestComputeSlots_BookingExcludesItsSlot(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	bookings := []Booking{
		{Resources: []int64{7}, Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}
	slots := ComputeSlots(day, []int64{7}, nil, nil, bookings, DefaultConfig())
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
	for _, s := range slots {
		booked := s.Start.Equal(day.Add(10 * time.Hour))
		if booked {
			if s.Available || len(s.Resources) != 0 {
				t.Fatalf("10:00 slot should be fully unavailable, got %+v", s)
			}
			continue
		}
		if !s.Available {
			t.Fatalf("slot at %s unexpectedly unavailable", s.Start.Format("15:04"))
		}
	}
}

func TestComputeSlots_OtherResourceStaysFree(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	bookings := []Booking{
		{Resources: []int64{1}, Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)},
	}
	slots := ComputeSlots(day, []int64{1, 2}, nil, nil, bookings, DefaultConfig())

	var at14 *Slot
	for i := range slots {
		if slots[i].Start.Equal(day.Add(14 * time.Hour)) {
			at14 = &slots[i]
		}
	}
	if at14 == nil {
		t.Fatal("missing 14:00 slot")
	}
	if !at14.Available {
		t.Fatal("14:00 slot should stay available via resource 2")
	}
	if len(at14.Resources) != 1 || at14.Resources[0] != 2 {
		t.Fatalf("14:00 resources = %v, want [2]", at14.Resources)
	}
}

func TestComputeSlots_BlockedSpanActsLikeBooking(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	blocked := map[int64][]Span{
		7: {{Start: 10 * 60, End: 11 * 60}},
	}
	slots := ComputeSlots(day, []int64{7}, nil, blocked, nil, DefaultConfig())
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Start.Equal(day.Add(10 * time.Hour)) {
			if s.Available {
				t.Fatal("blocked 10:00 slot should be unavailable")
			}
		} else if !s.Available {
			t.Fatalf("slot at %s unexpectedly unavailable", s.Start.Format("15:04"))
		}
	}
}

func TestComputeSlots_TouchingIntervalsDoNotOverlap(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// Booking ends exactly when the 10:00 slot starts; half-open semantics
	// mean the 10:00 slot stays free.
	bookings := []Booking{
		{Resources: []int64{7}, Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
	}
	slots := ComputeSlots(day, []int64{7}, nil, nil, bookings, DefaultConfig())
	for _, s := range slots {
		if s.Start.Equal(day.Add(10 * time.Hour)) && !s.Available {
			t.Fatal("10:00 slot should not be blocked by a booking ending at 10:00")
		}
		if s.Start.Equal(day.Add(9*time.Hour)) && s.Available {
			t.Fatal("09:00 slot should be blocked")
		}
	}
}

func TestComputeSlots_Deterministic(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := map[int64]Span{
		1: {Start: 9 * 60, End: 18 * 60},
	}
	blocked := map[int64][]Span{
		2: {{Start: 12 * 60, End: 13 * 60}},
	}
	bookings := []Booking{
		{Resources: []int64{1, 2}, Start: day.Add(15 * time.Hour), End: day.Add(16 * time.Hour)},
	}

	// Duplicate ids collapse; two identical calls agree structurally.
	a := ComputeSlots(day, []int64{2, 1, 2}, windows, blocked, bookings, DefaultConfig())
	b := ComputeSlots(day, []int64{1, 2, 1}, windows, blocked, bookings, DefaultConfig())
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical inputs should produce structurally equal slot sequences")
	}
	for _, s := range a {
		for i := 1; i < len(s.Resources); i++ {
			if s.Resources[i-1] >= s.Resources[i] {
				t.Fatalf("resource ids not strictly ascending: %v", s.Resources)
			}
		}
	}
}

func TestComputeSlots_EmptyResourceSet(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if slots := ComputeSlots(day, nil, nil, nil, nil, DefaultConfig()); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestComputeSlots_NonPositiveDurationRejected(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.SlotDuration = 0
	if slots := ComputeSlots(day, []int64{1}, nil, nil, nil, cfg); slots != nil {
		t.Fatalf("zero duration should yield nil, got %d slots", len(slots))
	}
	cfg.SlotDuration = -time.Hour
	if slots := ComputeSlots(day, []int64{1}, nil, nil, nil, cfg); slots != nil {
		t.Fatalf("negative duration should yield nil, got %d slots", len(slots))
	}
}

func TestComputeSlots_InvertedWindowIgnored(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := map[int64]Span{
		1: {Start: 18 * 60, End: 9 * 60},
		2: {Start: 9 * 60, End: 11 * 60},
	}
	slots := ComputeSlots(day, []int64{1, 2}, windows, nil, nil, DefaultConfig())
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots from resource 2 only, got %d", len(slots))
	}
	for _, s := range slots {
		for _, id := range s.Resources {
			if id == 1 {
				t.Fatal("resource with inverted window must never be free")
			}
		}
	}

	// All windows inverted: nothing to partition.
	if slots := ComputeSlots(day, []int64{1}, map[int64]Span{1: {Start: 600, End: 540}}, nil, nil, DefaultConfig()); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestComputeSlots_PartialWindowFitExcludesResource(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := map[int64]Span{
		1: {Start: 8 * 60, End: 9*60 + 30},
		2: {Start: 8 * 60, End: 20 * 60},
	}
	slots := ComputeSlots(day, []int64{1, 2}, windows, nil, nil, DefaultConfig())

	// 09:00-10:00 starts inside resource 1's window but ends past it:
	// fully excluded for 1, not clipped.
	for _, s := range slots {
		if s.Start.Equal(day.Add(9 * time.Hour)) {
			if !reflect.DeepEqual(s.Resources, []int64{2}) {
				t.Fatalf("09:00 resources = %v, want [2]", s.Resources)
			}
		}
		if s.Start.Equal(day.Add(8 * time.Hour)) {
			if !reflect.DeepEqual(s.Resources, []int64{1, 2}) {
				t.Fatalf("08:00 resources = %v, want [1 2]", s.Resources)
			}
		}
	}
}

func TestComputeSlots_NoTrailingPartialSlot(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := map[int64]Span{
		1: {Start: 8 * 60, End: 9*60 + 30},
	}
	slots := ComputeSlots(day, []int64{1}, windows, nil, nil, DefaultConfig())
	if len(slots) != 1 {
		t.Fatalf("expected single full slot, got %d", len(slots))
	}
	if !slots[0].End.Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("slot should end 09:00, got %s", slots[0].End.Format("15:04"))
	}
}

func TestComputeSlots_UnrequestedBookingResourcesIgnored(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	bookings := []Booking{
		{Resources: []int64{99}, Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}
	slots := ComputeSlots(day, []int64{7}, nil, nil, bookings, DefaultConfig())
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("booking for unrequested resource must not block %s", s.Start.Format("15:04"))
		}
	}
}

func TestComputeSlots_MultiResourceBookingBlocksAllItsResources(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	bookings := []Booking{
		{Resources: []int64{1, 2}, Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}
	slots := ComputeSlots(day, []int64{1, 2, 3}, nil, nil, bookings, DefaultConfig())
	for _, s := range slots {
		if s.Start.Equal(day.Add(10 * time.Hour)) {
			if !reflect.DeepEqual(s.Resources, []int64{3}) {
				t.Fatalf("10:00 resources = %v, want [3]", s.Resources)
			}
		}
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("08:30")
	if err != nil || m != 510 {
		t.Fatalf("ParseClock(08:30) = %d, %v", m, err)
	}
	if m, err = ParseClock("24:00"); err != nil || m != 1440 {
		t.Fatalf("ParseClock(24:00) = %d, %v", m, err)
	}
	if _, err = ParseClock("25:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
	if got := FormatClock(510); got != "08:30" {
		t.Fatalf("FormatClock(510) = %q", got)
	}
}
