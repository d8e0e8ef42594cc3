package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/model"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/schedule"
)

type fakeProvider struct {
	schedules map[int64]schedule.DaySchedule
	err       error
}

func (f fakeProvider) DaySchedules(_ context.Context, _ string, _ []int64, _ string) (map[int64]schedule.DaySchedule, error) {
	return f.schedules, f.err
}

func testHandler(p schedule.Provider) *BookingHandler {
	return &BookingHandler{
		logger:   slog.Default(),
		schedule: p,
		defaults: availability.DefaultConfig(),
	}
}

func testBooking(start, end time.Time, ids ...int64) *model.Booking {
	return &model.Booking{
		PortalID:    "portal-1",
		ResourceIDs: ids,
		StartTime:   start,
		EndTime:     end,
	}
}

func TestUniqueResourceIDs(t *testing.T) {
	got := uniqueResourceIDs([]int64{3, 1, 3, 0, -2, 1})
	if len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Fatalf("expected [3 1], got %v", got)
	}
}

func TestParseResourceIDsParam(t *testing.T) {
	ids, err := parseResourceIDsParam("1, 2,3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("expected three ids, got %v", ids)
	}

	if _, err := parseResourceIDsParam(""); err == nil {
		t.Fatal("expected error for empty list")
	}
	if _, err := parseResourceIDsParam("1,abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	if _, err := parseResourceIDsParam("0"); err == nil {
		t.Fatal("expected error for non-positive id")
	}
}

func TestConfigFromQuery_Overrides(t *testing.T) {
	h := testHandler(nil)
	q := url.Values{}
	q.Set("slot_minutes", "30")
	q.Set("day_start", "09:30")
	q.Set("day_end", "17:00")

	cfg, err := h.configFromQuery(q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SlotDuration != 30*time.Minute {
		t.Fatalf("expected 30m slots, got %v", cfg.SlotDuration)
	}
	if cfg.DefaultWindow.Start != 9*60+30 || cfg.DefaultWindow.End != 17*60 {
		t.Fatalf("unexpected window %+v", cfg.DefaultWindow)
	}
}

func TestConfigFromQuery_Defaults(t *testing.T) {
	h := testHandler(nil)
	cfg, err := h.configFromQuery(url.Values{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != availability.DefaultConfig() {
		t.Fatalf("expected defaults untouched, got %+v", cfg)
	}
}

func TestConfigFromQuery_RejectsBadValues(t *testing.T) {
	h := testHandler(nil)

	q := url.Values{}
	q.Set("slot_minutes", "0")
	if _, err := h.configFromQuery(q); err == nil {
		t.Fatal("expected error for zero slot_minutes")
	}

	q = url.Values{}
	q.Set("day_start", "18:00")
	q.Set("day_end", "09:00")
	if _, err := h.configFromQuery(q); err == nil {
		t.Fatal("expected error for inverted window")
	}

	q = url.Values{}
	q.Set("day_start", "25:99")
	if _, err := h.configFromQuery(q); err == nil {
		t.Fatal("expected error for unparseable clock")
	}
}

func TestValidateWithinSchedules_InsideWindow(t *testing.T) {
	h := testHandler(fakeProvider{schedules: map[int64]schedule.DaySchedule{
		1: {Window: availability.Span{Start: 9 * 60, End: 17 * 60}},
	}})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ok, err := h.validateWithinSchedules(context.Background(), testBooking(day.Add(10*time.Hour), day.Add(11*time.Hour), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("booking inside the window should validate")
	}
}

func TestValidateWithinSchedules_OutsideWindow(t *testing.T) {
	h := testHandler(fakeProvider{schedules: map[int64]schedule.DaySchedule{
		1: {Window: availability.Span{Start: 9 * 60, End: 17 * 60}},
	}})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ok, err := h.validateWithinSchedules(context.Background(), testBooking(day.Add(16*time.Hour+30*time.Minute), day.Add(17*time.Hour+30*time.Minute), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("booking past the window end should not validate")
	}
}

func TestValidateWithinSchedules_BlockedPeriod(t *testing.T) {
	h := testHandler(fakeProvider{schedules: map[int64]schedule.DaySchedule{
		1: {
			Window:  availability.Span{Start: 9 * 60, End: 17 * 60},
			Blocked: []availability.Span{{Start: 12 * 60, End: 13 * 60}},
		},
	}})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ok, err := h.validateWithinSchedules(context.Background(), testBooking(day.Add(12*time.Hour+30*time.Minute), day.Add(13*time.Hour+30*time.Minute), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("booking overlapping a blocked period should not validate")
	}

	// Touching the block boundary is fine.
	ok, err = h.validateWithinSchedules(context.Background(), testBooking(day.Add(13*time.Hour), day.Add(14*time.Hour), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("booking starting exactly at block end should validate")
	}
}

func TestValidateWithinSchedules_ClosedResource(t *testing.T) {
	h := testHandler(fakeProvider{schedules: map[int64]schedule.DaySchedule{
		1: {Closed: true},
	}})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ok, err := h.validateWithinSchedules(context.Background(), testBooking(day.Add(10*time.Hour), day.Add(11*time.Hour), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("closed resource should reject every booking")
	}
}

func TestValidateWithinSchedules_DefaultWindowFallback(t *testing.T) {
	// Nil provider: every resource validates against the default window.
	h := testHandler(nil)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	ok, err := h.validateWithinSchedules(context.Background(), testBooking(day.Add(8*time.Hour), day.Add(9*time.Hour), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("booking at default window start should validate")
	}

	ok, err = h.validateWithinSchedules(context.Background(), testBooking(day.Add(7*time.Hour), day.Add(8*time.Hour), 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("booking before the default window should not validate")
	}
}

func TestValidateWithinSchedules_ProviderErrorPropagates(t *testing.T) {
	h := testHandler(fakeProvider{err: errors.New("directory down")})
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if _, err := h.validateWithinSchedules(context.Background(), testBooking(day.Add(10*time.Hour), day.Add(11*time.Hour), 1)); err == nil {
		t.Fatal("provider errors must surface, not fall back to defaults")
	}
}

func TestParseDayOrInstant(t *testing.T) {
	if got, err := parseDayOrInstant("2026-03-02"); err != nil || !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date parse: got %v, err %v", got, err)
	}
	if got, err := parseDayOrInstant("2026-03-02T09:30:00Z"); err != nil || got.Hour() != 9 {
		t.Fatalf("instant parse: got %v, err %v", got, err)
	}
	if _, err := parseDayOrInstant("yesterday"); err == nil {
		t.Fatal("expected error for unrecognized format")
	}
}
