package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BenFidge/bookgrid/services/directory-service/internal/culture"
	"github.com/BenFidge/bookgrid/services/directory-service/internal/outbox"
	"github.com/BenFidge/bookgrid/services/directory-service/internal/storage"
)

type Handler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outbox: outboxRepo, logger: logger}
}

func portalIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Portal-Id"))
}

func resourceIDFromQuery(r *http.Request, key string) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// emitResourceUpdated records a cache-bust event in the same
// transaction as the edit it describes.
func (h *Handler) emitResourceUpdated(ctx context.Context, tx pgx.Tx, portalID string, resourceID int64) error {
	payload, err := json.Marshal(map[string]any{
		"portal_id":   portalID,
		"resource_id": resourceID,
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "resource",
		AggregateID:   portalID,
		EventType:     outbox.EventResourceUpdated,
		Payload:       payload,
	})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}

	s, err := h.repo.GetOrCreateSettings(r.Context(), portalID)
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"portal_id":   s.PortalID,
		"name":        s.Name,
		"locale":      s.Locale,
		"week_start":  s.WeekStart,
		"time_format": s.TimeFormat,
	})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name       string `json:"name"`
		Locale     string `json:"locale"`
		WeekStart  string `json:"week_start"`
		TimeFormat string `json:"time_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Locale = strings.TrimSpace(req.Locale)
	req.WeekStart = strings.ToLower(strings.TrimSpace(req.WeekStart))
	req.TimeFormat = strings.ToLower(strings.TrimSpace(req.TimeFormat))

	if req.WeekStart != "" && req.WeekStart != "monday" && req.WeekStart != "sunday" {
		http.Error(w, "week_start must be monday or sunday", http.StatusBadRequest)
		return
	}
	if req.TimeFormat != "" && req.TimeFormat != "24h" && req.TimeFormat != "12h" {
		http.Error(w, "time_format must be 24h or 12h", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpdateSettings(ctx, tx, storage.PortalSettings{
		PortalID:   portalID,
		Name:       req.Name,
		Locale:     req.Locale,
		WeekStart:  req.WeekStart,
		TimeFormat: req.TimeFormat,
	}); err != nil {
		http.Error(w, "failed to update settings", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCulture negotiates widget display conventions from the portal's
// pinned settings and the browser's Accept-Language.
func (h *Handler) GetCulture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	portalID := portalIDFromHeader(r)
	if portalID == "" {
		portalID = strings.TrimSpace(r.URL.Query().Get("portal_id"))
	}
	if portalID == "" {
		http.Error(w, "portal_id required", http.StatusBadRequest)
		return
	}

	s, err := h.repo.GetOrCreateSettings(r.Context(), portalID)
	if err != nil {
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	resolved := culture.Resolve(r.Header.Get("Accept-Language"), s.Locale, s.WeekStart, s.TimeFormat)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"portal_name": s.Name,
		"locale":      resolved.Locale,
		"week_start":  resolved.WeekStart,
		"time_format": resolved.TimeFormat,
	})
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}

	var req struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = "room"
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateResource(ctx, tx, portalID, req.Name, req.Kind)
	if err != nil {
		http.Error(w, "failed to create resource", http.StatusInternalServerError)
		return
	}
	if err := h.emitResourceUpdated(ctx, tx, portalID, id); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}

	resources, err := h.repo.ListResources(r.Context(), portalID, 100)
	if err != nil {
		http.Error(w, "failed to list resources", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(resources))
	for _, res := range resources {
		items = append(items, map[string]any{
			"id":         res.ID,
			"name":       res.Name,
			"kind":       res.Kind,
			"is_active":  res.IsActive,
			"created_at": res.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	id, ok := resourceIDFromQuery(r, "id")
	if !ok {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	res, err := h.repo.GetResource(r.Context(), portalID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "resource not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load resource", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         res.ID,
		"name":       res.Name,
		"kind":       res.Kind,
		"is_active":  res.IsActive,
		"created_at": res.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) SetResourceActive(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	id, ok := resourceIDFromQuery(r, "id")
	if !ok {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		http.Error(w, "is_active is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.SetResourceActive(ctx, tx, portalID, id, *req.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "resource not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update resource", http.StatusInternalServerError)
		return
	}
	if err := h.emitResourceUpdated(ctx, tx, portalID, id); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	id, ok := resourceIDFromQuery(r, "id")
	if !ok {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteResource(ctx, tx, portalID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "resource not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete resource", http.StatusInternalServerError)
		return
	}
	if err := h.emitResourceUpdated(ctx, tx, portalID, id); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListHours(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	resourceID, ok := resourceIDFromQuery(r, "resource_id")
	if !ok {
		http.Error(w, "resource_id is required", http.StatusBadRequest)
		return
	}

	hours, err := h.repo.ListHours(r.Context(), portalID, resourceID)
	if err != nil {
		http.Error(w, "failed to list hours", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(hours))
	for _, hr := range hours {
		items = append(items, map[string]any{
			"weekday":      hr.Weekday,
			"is_open":      hr.IsOpen,
			"start_minute": hr.StartMinute,
			"end_minute":   hr.EndMinute,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) UpsertHours(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	resourceID, ok := resourceIDFromQuery(r, "resource_id")
	if !ok {
		http.Error(w, "resource_id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Weekday     int  `json:"weekday"`
		IsOpen      bool `json:"is_open"`
		StartMinute int  `json:"start_minute"`
		EndMinute   int  `json:"end_minute"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.Weekday < 0 || req.Weekday > 6 {
		http.Error(w, "weekday must be between 0 and 6", http.StatusBadRequest)
		return
	}

	startMin := req.StartMinute
	endMin := req.EndMinute
	if !req.IsOpen {
		startMin = 0
		endMin = 0
	} else {
		if startMin < 0 || startMin >= 1440 || endMin <= 0 || endMin > 1440 || startMin >= endMin {
			http.Error(w, "invalid start_minute/end_minute", http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpsertHours(ctx, tx, portalID, storage.ResourceHours{
		ResourceID:  resourceID,
		Weekday:     req.Weekday,
		IsOpen:      req.IsOpen,
		StartMinute: startMin,
		EndMinute:   endMin,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "resource not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to upsert hours", http.StatusInternalServerError)
		return
	}
	if err := h.emitResourceUpdated(ctx, tx, portalID, resourceID); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateBlockedPeriod(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	resourceID, ok := resourceIDFromQuery(r, "resource_id")
	if !ok {
		http.Error(w, "resource_id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.repo.CreateBlockedPeriod(ctx, tx, portalID, resourceID, start.UTC(), end.UTC(), req.Reason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "resource not found", http.StatusNotFound)
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			http.Error(w, "blocked period overlaps existing entry", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create blocked period", http.StatusInternalServerError)
		return
	}
	if err := h.emitResourceUpdated(ctx, tx, portalID, resourceID); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id})
}

func (h *Handler) ListBlockedPeriods(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	resourceID, ok := resourceIDFromQuery(r, "resource_id")
	if !ok {
		http.Error(w, "resource_id is required", http.StatusBadRequest)
		return
	}

	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if fromStr == "" || toStr == "" {
		http.Error(w, "from and to are required (RFC3339)", http.StatusBadRequest)
		return
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	periods, err := h.repo.ListBlockedPeriods(r.Context(), portalID, resourceID, from.UTC(), to.UTC(), 100)
	if err != nil {
		http.Error(w, "failed to list blocked periods", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(periods))
	for _, b := range periods {
		items = append(items, map[string]any{
			"id":         b.ID,
			"start_time": b.StartTime.UTC().Format(time.RFC3339),
			"end_time":   b.EndTime.UTC().Format(time.RFC3339),
			"reason":     b.Reason,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(items)
}

func (h *Handler) DeleteBlockedPeriod(w http.ResponseWriter, r *http.Request) {
	portalID := portalIDFromHeader(r)
	if portalID == "" {
		http.Error(w, "missing X-Portal-Id", http.StatusBadRequest)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	resourceID, ok := resourceIDFromQuery(r, "resource_id")
	if id == "" || !ok {
		http.Error(w, "id and resource_id are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.DeleteBlockedPeriod(ctx, tx, portalID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "blocked period not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete blocked period", http.StatusInternalServerError)
		return
	}
	if err := h.emitResourceUpdated(ctx, tx, portalID, resourceID); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
