package grid

import (
	"testing"
	"time"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/model"
)

func TestWeekStart(t *testing.T) {
	// 2026-03-04 is a Wednesday.
	wed := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	monday := WeekStart(wed, time.Monday)
	if !monday.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monday week start = %s", monday.Format("2006-01-02"))
	}

	sunday := WeekStart(wed, time.Sunday)
	if !sunday.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("sunday week start = %s", sunday.Format("2006-01-02"))
	}

	// A day that already is the week start maps to itself.
	sameDay := WeekStart(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), time.Monday)
	if !sameDay.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start of monday = %s", sameDay.Format("2006-01-02"))
	}
}

func TestBuild_SevenColumnsWithBookingsInTheirDay(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	days := make([]DayInput, 7)

	bookings := []model.Booking{
		{
			ID:          "b-1",
			Title:       "Fitting",
			ResourceIDs: []int64{1},
			StartTime:   weekStart.AddDate(0, 0, 2).Add(10 * time.Hour),
			EndTime:     weekStart.AddDate(0, 0, 2).Add(11 * time.Hour),
			Status:      model.StatusBooked,
		},
	}

	week := Build(weekStart, []int64{1}, days, bookings, availability.DefaultConfig())
	if len(week.Days) != 7 {
		t.Fatalf("expected 7 day columns, got %d", len(week.Days))
	}

	for i, day := range week.Days {
		if i == 2 {
			if len(day.Bookings) != 1 || day.Bookings[0].ID != "b-1" {
				t.Fatalf("day 2 bookings = %+v", day.Bookings)
			}
			continue
		}
		if len(day.Bookings) != 0 {
			t.Fatalf("day %d should have no bookings, got %d", i, len(day.Bookings))
		}
	}

	// The booked slot on Wednesday is unavailable, its neighbors are not.
	wednesday := week.Days[2]
	for _, s := range wednesday.Slots {
		if s.Start.Equal(weekStart.AddDate(0, 0, 2).Add(10 * time.Hour)) {
			if s.Available {
				t.Fatal("booked slot should be unavailable")
			}
		} else if !s.Available {
			t.Fatalf("slot at %s unexpectedly unavailable", s.Start.Format(time.RFC3339))
		}
	}
}

func TestBuild_ClosedDayHasNoSlots(t *testing.T) {
	weekStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	days := make([]DayInput, 2)
	// Day 0: resource closed (invalid span). Day 1: defaults.
	days[0].Windows = map[int64]availability.Span{1: {}}

	week := Build(weekStart, []int64{1}, days, nil, availability.DefaultConfig())
	if len(week.Days[0].Slots) != 0 {
		t.Fatalf("closed day should have no slots, got %d", len(week.Days[0].Slots))
	}
	if len(week.Days[1].Slots) != 12 {
		t.Fatalf("default day should have 12 slots, got %d", len(week.Days[1].Slots))
	}
}
