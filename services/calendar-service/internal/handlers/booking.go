package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BenFidge/bookgrid/services/calendar-service/internal/availability"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/contacts"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/model"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/outbox"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/schedule"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/storage"
)

type BookingHandler struct {
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
	schedule   schedule.Provider
	contacts   *contacts.Client
	defaults   availability.Config
}

func NewBookingHandler(repo *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger, scheduleProvider schedule.Provider, contactsClient *contacts.Client, defaults availability.Config) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
		schedule:   scheduleProvider,
		contacts:   contactsClient,
		defaults:   defaults,
	}
}

type createBookingRequest struct {
	PortalID     string  `json:"portal_id"`
	ResourceIDs  []int64 `json:"resource_ids"`
	Title        string  `json:"title"`
	ContactID    int64   `json:"contact_id"`
	ContactName  string  `json:"contact_name"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone string  `json:"contact_phone"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
}

type createBookingResponse struct {
	BookingID string `json:"booking_id"`
}

type cancelBookingRequest struct {
	PortalID  string `json:"portal_id"`
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type cancelBookingResponse struct {
	BookingID   string `json:"booking_id"`
	Status      string `json:"status"`
	CancelledAt string `json:"cancelled_at"`
}

type bookingItem struct {
	BookingID    string  `json:"booking_id"`
	ResourceIDs  []int64 `json:"resource_ids"`
	Title        string  `json:"title"`
	ContactID    int64   `json:"contact_id,omitempty"`
	ContactName  string  `json:"contact_name"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Status       string  `json:"status"`
	CancelledAt  string  `json:"cancelled_at,omitempty"`
	CancelReason string  `json:"cancel_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.PortalID = strings.TrimSpace(req.PortalID)
	req.Title = strings.TrimSpace(req.Title)
	req.ContactName = strings.TrimSpace(req.ContactName)

	if req.PortalID == "" || req.Title == "" {
		http.Error(w, "portal_id and title are required", http.StatusBadRequest)
		return
	}
	resourceIDs := uniqueResourceIDs(req.ResourceIDs)
	if len(resourceIDs) == 0 {
		http.Error(w, "at least one resource_id is required", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !endTime.After(startTime) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	booking := &model.Booking{
		PortalID:     req.PortalID,
		ResourceIDs:  resourceIDs,
		Title:        req.Title,
		ContactID:    req.ContactID,
		ContactName:  req.ContactName,
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		StartTime:    startTime.UTC(),
		EndTime:      endTime.UTC(),
		Status:       model.StatusBooked,
	}
	h.resolveContact(r.Context(), booking)
	if booking.ContactName == "" {
		http.Error(w, "contact_name or a resolvable contact_id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, booking.PortalID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			if len(rec.ResponsePayload) > 0 {
				_, _ = w.Write(rec.ResponsePayload)
				return
			}
			_ = json.NewEncoder(w).Encode(createBookingResponse{BookingID: rec.BookingID})
			return
		}
	}

	// Bookings must fit inside each requested resource's working window
	// minus blocked periods; the directory default applies when no
	// schedule is configured.
	ok, err := h.validateWithinSchedules(ctx, booking)
	if err != nil {
		// Do not finalize idempotency on dependency errors; the client may retry with the same key.
		http.Error(w, "schedule service unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		if idempotencyKey != "" {
			if h.finalizeIdempotencyError(ctx, tx, booking.PortalID, idempotencyKey, http.StatusUnprocessableEntity, "requested time is outside resource availability") {
				_ = tx.Commit(ctx)
				return
			}
		}
		http.Error(w, "requested time is outside resource availability", http.StatusUnprocessableEntity)
		return
	}

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"booking_id":   id,
		"portal_id":    booking.PortalID,
		"resource_ids": booking.ResourceIDs,
		"title":        booking.Title,
		"contact_name": booking.ContactName,
		"start_time":   booking.StartTime.Format(time.RFC3339),
		"end_time":     booking.EndTime.Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   id,
		EventType:     outbox.EventBookingCreated,
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(createBookingResponse{BookingID: id})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, booking.PortalID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	portalID := strings.TrimSpace(r.Header.Get("X-Portal-Id"))
	if portalID == "" {
		portalID = strings.TrimSpace(req.PortalID)
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.Reason = strings.TrimSpace(req.Reason)
	if portalID == "" || req.BookingID == "" {
		http.Error(w, "portal_id and booking_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, portalID, req.BookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	if booking.Status == model.StatusCancelled && booking.CancelledAt != nil {
		h.writeCancelResponse(w, booking.ID, booking.CancelledAt.UTC())
		return
	}
	if booking.Status != model.StatusBooked {
		http.Error(w, "booking cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, portalID, booking.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel booking", http.StatusInternalServerError)
		return
	}

	cancelPayload, err := json.Marshal(map[string]any{
		"booking_id":   booking.ID,
		"portal_id":    booking.PortalID,
		"resource_ids": booking.ResourceIDs,
		"start_time":   booking.StartTime.UTC().Format(time.RFC3339),
		"end_time":     booking.EndTime.UTC().Format(time.RFC3339),
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
		"reason":       req.Reason,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "booking",
		AggregateID:   booking.ID,
		EventType:     outbox.EventBookingCancelled,
		Payload:       cancelPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, booking.ID, cancelledAt.UTC())
}

// Get serves the public booking confirmation view.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portalID := strings.TrimSpace(r.URL.Query().Get("portal_id"))
	bookingID := strings.TrimSpace(r.URL.Query().Get("id"))
	if portalID == "" || bookingID == "" {
		http.Error(w, "portal_id and id are required", http.StatusBadRequest)
		return
	}

	booking, err := h.repo.Get(r.Context(), portalID, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, bookingToItem(booking))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portalID := strings.TrimSpace(r.Header.Get("X-Portal-Id"))
	if portalID == "" {
		portalID = strings.TrimSpace(r.URL.Query().Get("portal_id"))
	}
	if portalID == "" {
		http.Error(w, "portal_id required", http.StatusBadRequest)
		return
	}

	fromRaw := strings.TrimSpace(r.URL.Query().Get("from"))
	toRaw := strings.TrimSpace(r.URL.Query().Get("to"))

	var bookings []model.Booking
	var err error
	if fromRaw != "" && toRaw != "" {
		from, fromErr := parseDayOrInstant(fromRaw)
		to, toErr := parseDayOrInstant(toRaw)
		if fromErr != nil || toErr != nil || !to.After(from) {
			http.Error(w, "invalid from/to range", http.StatusBadRequest)
			return
		}
		bookings, err = h.repo.ListForRange(r.Context(), portalID, from, to)
	} else {
		limit := 50
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			if n, atoiErr := strconv.Atoi(raw); atoiErr == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		bookings, err = h.repo.ListRecent(r.Context(), portalID, limit)
	}
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingItem, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, bookingToItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

// resolveContact enriches the booking from the portal CRM when a
// contact id was supplied. CRM failures degrade to the caller-provided
// fields rather than blocking the booking.
func (h *BookingHandler) resolveContact(ctx context.Context, booking *model.Booking) {
	if h.contacts == nil || booking.ContactID <= 0 {
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	contact, err := h.contacts.Get(reqCtx, booking.PortalID, booking.ContactID)
	if err != nil {
		h.logger.Warn("contact lookup failed; using submitted fields", "contact_id", booking.ContactID, "err", err)
		return
	}
	if booking.ContactName == "" {
		booking.ContactName = contact.Name
	}
	if booking.ContactEmail == "" {
		booking.ContactEmail = contact.Email
	}
	if booking.ContactPhone == "" {
		booking.ContactPhone = contact.Phone
	}
}

// validateWithinSchedules checks [start, end) against each requested
// resource's day schedule. Resources without directory configuration
// fall back to the default window with no blocked periods.
func (h *BookingHandler) validateWithinSchedules(ctx context.Context, booking *model.Booking) (bool, error) {
	date := booking.StartTime.UTC().Format("2006-01-02")
	schedules, err := h.fetchSchedules(ctx, booking.PortalID, booking.ResourceIDs, date)
	if err != nil {
		return false, err
	}

	day, _ := time.ParseInLocation("2006-01-02", date, time.UTC)
	windows, blocked := schedule.ResolveInputs(schedules)
	for _, id := range booking.ResourceIDs {
		win, configured := windows[id]
		if !configured {
			win = h.defaults.DefaultWindow
		}
		if !win.Valid() {
			return false, nil
		}
		winStart := day.Add(time.Duration(win.Start) * time.Minute)
		winEnd := day.Add(time.Duration(win.End) * time.Minute)
		if booking.StartTime.Before(winStart) || booking.EndTime.After(winEnd) {
			return false, nil
		}
		for _, b := range blocked[id] {
			blockStart := day.Add(time.Duration(b.Start) * time.Minute)
			blockEnd := day.Add(time.Duration(b.End) * time.Minute)
			if booking.StartTime.Before(blockEnd) && blockStart.Before(booking.EndTime) {
				return false, nil
			}
		}
	}
	return true, nil
}

// fetchSchedules asks the directory for day schedules; a nil provider
// means every resource uses defaults. Provider errors propagate so the
// caller can distinguish outage from "not configured".
func (h *BookingHandler) fetchSchedules(ctx context.Context, portalID string, resourceIDs []int64, date string) (map[int64]schedule.DaySchedule, error) {
	if h.schedule == nil {
		return nil, nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return h.schedule.DaySchedules(reqCtx, portalID, resourceIDs, date)
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, bookingID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		BookingID:   bookingID,
		Status:      model.StatusCancelled,
		CancelledAt: cancelledAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, portalID, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.repo.FinalizeIdempotency(ctx, tx, portalID, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}

func bookingToItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:    b.ID,
		ResourceIDs:  b.ResourceIDs,
		Title:        b.Title,
		ContactID:    b.ContactID,
		ContactName:  b.ContactName,
		StartTime:    b.StartTime.UTC().Format(time.RFC3339),
		EndTime:      b.EndTime.UTC().Format(time.RFC3339),
		Status:       b.Status,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func uniqueResourceIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func parseDayOrInstant(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}
