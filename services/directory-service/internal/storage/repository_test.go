package storage

import (
	"testing"
	"time"
)

func TestClampToDay(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	span := clampToDay(day, day.Add(9*time.Hour), day.Add(10*time.Hour+30*time.Minute))
	if span.StartMinute != 540 || span.EndMinute != 630 {
		t.Fatalf("expected 540..630, got %+v", span)
	}

	// Period starting the previous evening clips to midnight.
	span = clampToDay(day, day.Add(-2*time.Hour), day.Add(1*time.Hour))
	if span.StartMinute != 0 || span.EndMinute != 60 {
		t.Fatalf("expected 0..60, got %+v", span)
	}

	// Period running past the day end clips to 24:00.
	span = clampToDay(day, day.Add(23*time.Hour), day.Add(26*time.Hour))
	if span.StartMinute != 23*60 || span.EndMinute != 24*60 {
		t.Fatalf("expected 1380..1440, got %+v", span)
	}
}
