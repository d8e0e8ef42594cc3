package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/BenFidge/bookgrid/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type PortalSettings struct {
	PortalID   string
	Name       string
	Locale     string
	WeekStart  string
	TimeFormat string
}

func (r *Repository) GetOrCreateSettings(ctx context.Context, portalID string) (PortalSettings, error) {
	// Create default settings if missing (keeps widget installs zero-config).
	_, err := r.pool.Exec(ctx, `
		INSERT INTO portal_settings (portal_id)
		VALUES ($1)
		ON CONFLICT (portal_id) DO NOTHING
	`, portalID)
	if err != nil {
		return PortalSettings{}, err
	}

	var s PortalSettings
	err = r.pool.QueryRow(ctx, `
		SELECT portal_id, name, locale, week_start, time_format
		FROM portal_settings
		WHERE portal_id = $1
	`, portalID).Scan(&s.PortalID, &s.Name, &s.Locale, &s.WeekStart, &s.TimeFormat)
	return s, err
}

func (r *Repository) UpdateSettings(ctx context.Context, tx pgx.Tx, s PortalSettings) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO portal_settings (portal_id, name, locale, week_start, time_format)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (portal_id) DO UPDATE
		SET name = EXCLUDED.name,
			locale = EXCLUDED.locale,
			week_start = EXCLUDED.week_start,
			time_format = EXCLUDED.time_format,
			updated_at = now()
	`, s.PortalID, s.Name, s.Locale, s.WeekStart, s.TimeFormat)
	return err
}

type Resource struct {
	ID        int64
	PortalID  string
	Name      string
	Kind      string
	IsActive  bool
	CreatedAt time.Time
}

func (r *Repository) CreateResource(ctx context.Context, tx pgx.Tx, portalID, name, kind string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO resources (portal_id, name, kind)
		VALUES ($1, $2, $3)
		RETURNING id
	`, portalID, name, kind).Scan(&id)
	if err != nil {
		return 0, err
	}

	// Default week: Mon-Fri 09:00-17:00 open, Sat/Sun closed.
	for wd := 0; wd <= 6; wd++ {
		isOpen := wd >= 1 && wd <= 5
		startMin := 540
		endMin := 1020
		if !isOpen {
			startMin = 0
			endMin = 0
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO resource_hours (resource_id, weekday, is_open, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (resource_id, weekday) DO NOTHING
		`, id, wd, isOpen, startMin, endMin); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *Repository) ListResources(ctx context.Context, portalID string, limit int) ([]Resource, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, portal_id, name, kind, is_active, created_at
		FROM resources
		WHERE portal_id = $1
		ORDER BY id ASC
		LIMIT $2
	`, portalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.PortalID, &res.Name, &res.Kind, &res.IsActive, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) GetResource(ctx context.Context, portalID string, resourceID int64) (Resource, error) {
	var res Resource
	err := r.pool.QueryRow(ctx, `
		SELECT id, portal_id, name, kind, is_active, created_at
		FROM resources
		WHERE portal_id = $1 AND id = $2
	`, portalID, resourceID).Scan(&res.ID, &res.PortalID, &res.Name, &res.Kind, &res.IsActive, &res.CreatedAt)
	return res, err
}

func (r *Repository) SetResourceActive(ctx context.Context, tx pgx.Tx, portalID string, resourceID int64, isActive bool) error {
	tag, err := tx.Exec(ctx, `
		UPDATE resources
		SET is_active = $3
		WHERE portal_id = $1 AND id = $2
	`, portalID, resourceID, isActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeleteResource(ctx context.Context, tx pgx.Tx, portalID string, resourceID int64) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM resources
		WHERE portal_id = $1 AND id = $2
	`, portalID, resourceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type ResourceHours struct {
	ResourceID  int64
	Weekday     int
	IsOpen      bool
	StartMinute int
	EndMinute   int
}

func (r *Repository) ListHours(ctx context.Context, portalID string, resourceID int64) ([]ResourceHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.resource_id, h.weekday, h.is_open, h.start_minute, h.end_minute
		FROM resource_hours h
		JOIN resources res ON res.id = h.resource_id
		WHERE res.portal_id = $1 AND h.resource_id = $2
		ORDER BY h.weekday ASC
	`, portalID, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResourceHours
	for rows.Next() {
		var h ResourceHours
		if err := rows.Scan(&h.ResourceID, &h.Weekday, &h.IsOpen, &h.StartMinute, &h.EndMinute); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) UpsertHours(ctx context.Context, tx pgx.Tx, portalID string, h ResourceHours) error {
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM resources WHERE id = $1 AND portal_id = $2
		)
	`, h.ResourceID, portalID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO resource_hours (resource_id, weekday, is_open, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (resource_id, weekday) DO UPDATE
		SET is_open = EXCLUDED.is_open,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, h.ResourceID, h.Weekday, h.IsOpen, h.StartMinute, h.EndMinute)
	return err
}

type BlockedPeriod struct {
	ID         string
	ResourceID int64
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
	CreatedAt  time.Time
}

func (r *Repository) CreateBlockedPeriod(ctx context.Context, tx pgx.Tx, portalID string, resourceID int64, startTime, endTime time.Time, reason string) (string, error) {
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM resources WHERE id = $1 AND portal_id = $2
		)
	`, resourceID, portalID).Scan(&exists); err != nil {
		return "", err
	}
	if !exists {
		return "", pgx.ErrNoRows
	}

	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO blocked_periods (id, resource_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, id, resourceID, startTime, endTime, reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListBlockedPeriods(ctx context.Context, portalID string, resourceID int64, from, to time.Time, limit int) ([]BlockedPeriod, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.resource_id, b.start_time, b.end_time, b.reason, b.created_at
		FROM blocked_periods b
		JOIN resources res ON res.id = b.resource_id
		WHERE res.portal_id = $1
			AND b.resource_id = $2
			AND b.end_time > $3
			AND b.start_time < $4
		ORDER BY b.start_time ASC
		LIMIT $5
	`, portalID, resourceID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BlockedPeriod
	for rows.Next() {
		var b BlockedPeriod
		if err := rows.Scan(&b.ID, &b.ResourceID, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) DeleteBlockedPeriod(ctx context.Context, tx pgx.Tx, portalID, blockedID string) error {
	tag, err := tx.Exec(ctx, `
		DELETE FROM blocked_periods b
		USING resources res
		WHERE b.resource_id = res.id
		  AND res.portal_id = $1
		  AND b.id = $2
	`, portalID, blockedID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type MinuteSpan struct {
	StartMinute int
	EndMinute   int
}

type DaySchedule struct {
	ResourceID  int64
	IsOpen      bool
	StartMinute int
	EndMinute   int
	Blocked     []MinuteSpan
}

// DaySchedules returns the working window and blocked minutes for each
// known resource on the given day. Resources the directory has never
// seen are simply absent from the result; inactive ones come back
// closed so deactivation takes effect immediately.
func (r *Repository) DaySchedules(ctx context.Context, portalID string, resourceIDs []int64, day time.Time) (map[int64]DaySchedule, error) {
	if len(resourceIDs) == 0 {
		return map[int64]DaySchedule{}, nil
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	weekday := int(dayStart.Weekday())

	rows, err := r.pool.Query(ctx, `
		SELECT res.id, res.is_active, h.is_open, h.start_minute, h.end_minute
		FROM resources res
		LEFT JOIN resource_hours h ON h.resource_id = res.id AND h.weekday = $3
		WHERE res.portal_id = $1 AND res.id = ANY($2)
	`, portalID, resourceIDs, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]DaySchedule)
	for rows.Next() {
		var (
			id       int64
			isActive bool
			isOpen   *bool
			startMin *int
			endMin   *int
		)
		if err := rows.Scan(&id, &isActive, &isOpen, &startMin, &endMin); err != nil {
			return nil, err
		}
		sched := DaySchedule{ResourceID: id}
		switch {
		case !isActive:
			// closed
		case isOpen == nil:
			// Hours were never seeded; same default week as CreateResource.
			if weekday >= 1 && weekday <= 5 {
				sched.IsOpen = true
				sched.StartMinute = 540
				sched.EndMinute = 1020
			}
		case *isOpen:
			sched.IsOpen = true
			sched.StartMinute = *startMin
			sched.EndMinute = *endMin
		}
		out[id] = sched
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	blockRows, err := r.pool.Query(ctx, `
		SELECT b.resource_id, b.start_time, b.end_time
		FROM blocked_periods b
		JOIN resources res ON res.id = b.resource_id
		WHERE res.portal_id = $1
			AND b.resource_id = ANY($2)
			AND b.end_time > $3
			AND b.start_time < $4
		ORDER BY b.start_time ASC
	`, portalID, resourceIDs, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer blockRows.Close()

	for blockRows.Next() {
		var (
			id         int64
			start, end time.Time
		)
		if err := blockRows.Scan(&id, &start, &end); err != nil {
			return nil, err
		}
		sched, ok := out[id]
		if !ok || !sched.IsOpen {
			continue
		}
		span := clampToDay(dayStart, start.UTC(), end.UTC())
		if span.EndMinute > span.StartMinute {
			sched.Blocked = append(sched.Blocked, span)
			out[id] = sched
		}
	}
	if blockRows.Err() != nil {
		return nil, blockRows.Err()
	}
	return out, nil
}

func clampToDay(dayStart time.Time, start, end time.Time) MinuteSpan {
	startMin := int(start.Sub(dayStart) / time.Minute)
	endMin := int(end.Sub(dayStart) / time.Minute)
	if startMin < 0 {
		startMin = 0
	}
	if endMin > 24*60 {
		endMin = 24 * 60
	}
	return MinuteSpan{StartMinute: startMin, EndMinute: endMin}
}
