package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/grid"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/schedule"
)

type slotItem struct {
	StartTime            string  `json:"start_time"`
	EndTime              string  `json:"end_time"`
	IsAvailable          bool    `json:"is_available"`
	AvailableResourceIDs []int64 `json:"available_resource_ids"`
}

type slotsResponse struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

type gridBookingItem struct {
	BookingID   string  `json:"booking_id"`
	Title       string  `json:"title"`
	ResourceIDs []int64 `json:"resource_ids"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
}

type weekDayItem struct {
	Date     string            `json:"date"`
	Slots    []slotItem        `json:"slots"`
	Bookings []gridBookingItem `json:"bookings"`
}

type weekResponse struct {
	WeekStart string        `json:"week_start"`
	Days      []weekDayItem `json:"days"`
}

// Slots serves the single-day availability strip the widget renders
// under a selected date.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	portalID := strings.TrimSpace(q.Get("portal_id"))
	if portalID == "" {
		http.Error(w, "portal_id required", http.StatusBadRequest)
		return
	}
	resourceIDs, err := parseResourceIDsParam(q.Get("resource_ids"))
	if err != nil {
		http.Error(w, "invalid resource_ids", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("date")), time.UTC)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	cfg, err := h.configFromQuery(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	schedules, err := h.fetchSchedules(r.Context(), portalID, resourceIDs, day.Format("2006-01-02"))
	if err != nil {
		http.Error(w, "schedule service unavailable", http.StatusServiceUnavailable)
		return
	}
	windows, blocked := schedule.ResolveInputs(schedules)

	occupancy, err := h.repo.ListOccupancy(r.Context(), portalID, resourceIDs, day, day.AddDate(0, 0, 1))
	if err != nil {
		http.Error(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}
	busy := make([]availability.Booking, 0, len(occupancy))
	for _, o := range occupancy {
		busy = append(busy, availability.Booking{Resources: []int64{o.ResourceID}, Start: o.Start, End: o.End})
	}

	slots := availability.ComputeSlots(day, resourceIDs, windows, blocked, busy, cfg)
	writeJSON(w, http.StatusOK, slotsResponse{
		Date:  day.Format("2006-01-02"),
		Slots: slotsToItems(slots),
	})
}

// Week serves the seven-column grid. Any date within the desired week
// selects it; week_start picks monday (default) or sunday columns.
func (h *BookingHandler) Week(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	portalID := strings.TrimSpace(q.Get("portal_id"))
	if portalID == "" {
		http.Error(w, "portal_id required", http.StatusBadRequest)
		return
	}
	resourceIDs, err := parseResourceIDsParam(q.Get("resource_ids"))
	if err != nil {
		http.Error(w, "invalid resource_ids", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("date")), time.UTC)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	firstDay := time.Monday
	if strings.EqualFold(strings.TrimSpace(q.Get("week_start")), "sunday") {
		firstDay = time.Sunday
	}
	cfg, err := h.configFromQuery(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	weekStart := grid.WeekStart(day, firstDay)
	days := make([]grid.DayInput, 7)
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i).Format("2006-01-02")
		schedules, err := h.fetchSchedules(r.Context(), portalID, resourceIDs, date)
		if err != nil {
			http.Error(w, "schedule service unavailable", http.StatusServiceUnavailable)
			return
		}
		windows, blocked := schedule.ResolveInputs(schedules)
		days[i] = grid.DayInput{Windows: windows, Blocked: blocked}
	}

	bookings, err := h.repo.ListForRange(r.Context(), portalID, weekStart, weekStart.AddDate(0, 0, 7))
	if err != nil {
		http.Error(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}

	week := grid.Build(weekStart, resourceIDs, days, bookings, cfg)
	writeJSON(w, http.StatusOK, weekToResponse(week))
}

// configFromQuery applies per-request overrides on top of the service
// defaults. day_start/day_end move the fallback window only; windows
// configured in the directory are authoritative.
func (h *BookingHandler) configFromQuery(q url.Values) (availability.Config, error) {
	cfg := h.defaults
	if raw := strings.TrimSpace(q.Get("slot_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 24*60 {
			return cfg, errInvalidParam("slot_minutes")
		}
		cfg.SlotDuration = time.Duration(n) * time.Minute
	}
	if raw := strings.TrimSpace(q.Get("day_start")); raw != "" {
		m, err := availability.ParseClock(raw)
		if err != nil {
			return cfg, errInvalidParam("day_start")
		}
		cfg.DefaultWindow.Start = m
	}
	if raw := strings.TrimSpace(q.Get("day_end")); raw != "" {
		m, err := availability.ParseClock(raw)
		if err != nil {
			return cfg, errInvalidParam("day_end")
		}
		cfg.DefaultWindow.End = m
	}
	if !cfg.DefaultWindow.Valid() {
		return cfg, errInvalidParam("day_start/day_end")
	}
	return cfg, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid " + string(e) }

func parseResourceIDsParam(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, errInvalidParam("resource id " + p)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errInvalidParam("resource_ids")
	}
	return ids, nil
}

func slotsToItems(slots []availability.Slot) []slotItem {
	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		ids := s.Resources
		if ids == nil {
			ids = []int64{}
		}
		items = append(items, slotItem{
			StartTime:            s.Start.UTC().Format(time.RFC3339),
			EndTime:              s.End.UTC().Format(time.RFC3339),
			IsAvailable:          s.Available,
			AvailableResourceIDs: ids,
		})
	}
	return items
}

func weekToResponse(week grid.Week) weekResponse {
	resp := weekResponse{
		WeekStart: week.WeekStart.Format("2006-01-02"),
		Days:      make([]weekDayItem, 0, len(week.Days)),
	}
	for _, d := range week.Days {
		item := weekDayItem{
			Date:     d.Date.Format("2006-01-02"),
			Slots:    slotsToItems(d.Slots),
			Bookings: make([]gridBookingItem, 0, len(d.Bookings)),
		}
		for _, b := range d.Bookings {
			item.Bookings = append(item.Bookings, gridBookingItem{
				BookingID:   b.ID,
				Title:       b.Title,
				ResourceIDs: b.ResourceIDs,
				StartTime:   b.Start.UTC().Format(time.RFC3339),
				EndTime:     b.End.UTC().Format(time.RFC3339),
			})
		}
		resp.Days = append(resp.Days, item)
	}
	return resp
}
