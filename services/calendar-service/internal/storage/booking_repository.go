package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BenFidge/bookgrid/libs/db"
	"github.com/BenFidge/bookgrid/services/calendar-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	PortalID        string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

// Occupancy is one resource's claim on a time range by a live booking.
type Occupancy struct {
	ResourceID int64
	Start      time.Time
	End        time.Time
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, portalID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, portalID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (portal_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (portal_id, idempotency_key) DO NOTHING
	`, portalID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, portalID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, portalID, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE portal_id = $1 AND idempotency_key = $2
	`, portalID, key, bookingID, statusCode, response)
	return err
}

// Create inserts the booking plus one occupancy row per resource. The
// exclusion constraint on booking_resources raises 23P01 when any
// resource is already taken for an overlapping range; callers detect it
// with IsConflict.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	id := uuid.NewString()
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, portal_id, title, contact_id, contact_name, contact_email, contact_phone, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, id, b.PortalID, b.Title, b.ContactID, b.ContactName, b.ContactEmail, b.ContactPhone,
		b.StartTime, b.EndTime, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		return "", err
	}

	for _, resourceID := range b.ResourceIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO booking_resources (booking_id, resource_id, start_time, end_time, active)
			VALUES ($1, $2, $3, $4, TRUE)
		`, id, resourceID, b.StartTime, b.EndTime)
		if err != nil {
			return "", err
		}
	}
	b.ID = id
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, portalID, bookingID string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT b.id, b.portal_id, b.title, b.contact_id, b.contact_name, b.contact_email, b.contact_phone,
			b.start_time, b.end_time, b.status, b.cancelled_at, COALESCE(b.cancellation_reason, ''), b.created_at,
			ARRAY(SELECT br.resource_id FROM booking_resources br WHERE br.booking_id = b.id ORDER BY br.resource_id)
		FROM bookings b
		WHERE b.id = $1 AND b.portal_id = $2
		FOR UPDATE OF b
	`, bookingID, portalID)
	return scanBooking(row)
}

func (r *BookingRepository) Get(ctx context.Context, portalID, bookingID string) (model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT b.id, b.portal_id, b.title, b.contact_id, b.contact_name, b.contact_email, b.contact_phone,
			b.start_time, b.end_time, b.status, b.cancelled_at, COALESCE(b.cancellation_reason, ''), b.created_at,
			ARRAY(SELECT br.resource_id FROM booking_resources br WHERE br.booking_id = b.id ORDER BY br.resource_id)
		FROM bookings b
		WHERE b.id = $1 AND b.portal_id = $2
	`, bookingID, portalID)
	return scanBooking(row)
}

// Cancel marks the booking cancelled and releases its occupancy rows so
// the exclusion constraint frees the range immediately.
func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, portalID, bookingID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $3
		WHERE id = $1 AND portal_id = $2
		RETURNING cancelled_at
	`, bookingID, portalID, reason).Scan(&cancelledAt)
	if err != nil {
		return time.Time{}, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE booking_resources SET active = FALSE WHERE booking_id = $1
	`, bookingID)
	return cancelledAt, err
}

// ListOccupancy returns the live per-resource busy intervals overlapping
// [start, end) for the requested resources.
func (r *BookingRepository) ListOccupancy(ctx context.Context, portalID string, resourceIDs []int64, start, end time.Time) ([]Occupancy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT br.resource_id, br.start_time, br.end_time
		FROM booking_resources br
		JOIN bookings b ON b.id = br.booking_id
		WHERE b.portal_id = $1
			AND br.resource_id = ANY($2)
			AND br.active
			AND br.start_time < $4
			AND br.end_time > $3
		ORDER BY br.start_time ASC, br.resource_id ASC
	`, portalID, resourceIDs, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Occupancy
	for rows.Next() {
		var o Occupancy
		if err := rows.Scan(&o.ResourceID, &o.Start, &o.End); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListForRange returns booked bookings overlapping [start, end), newest
// first within the window; used by the week grid and the management list.
func (r *BookingRepository) ListForRange(ctx context.Context, portalID string, start, end time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.portal_id, b.title, b.contact_id, b.contact_name, b.contact_email, b.contact_phone,
			b.start_time, b.end_time, b.status, b.cancelled_at, COALESCE(b.cancellation_reason, ''), b.created_at,
			ARRAY(SELECT br.resource_id FROM booking_resources br WHERE br.booking_id = b.id ORDER BY br.resource_id)
		FROM bookings b
		WHERE b.portal_id = $1
			AND b.status = 'booked'
			AND b.start_time < $3
			AND b.end_time > $2
		ORDER BY b.start_time ASC
	`, portalID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *BookingRepository) ListRecent(ctx context.Context, portalID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.portal_id, b.title, b.contact_id, b.contact_name, b.contact_email, b.contact_phone,
			b.start_time, b.end_time, b.status, b.cancelled_at, COALESCE(b.cancellation_reason, ''), b.created_at,
			ARRAY(SELECT br.resource_id FROM booking_resources br WHERE br.booking_id = b.id ORDER BY br.resource_id)
		FROM bookings b
		WHERE b.portal_id = $1
		ORDER BY b.start_time DESC
		LIMIT $2
	`, portalID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

// PurgeExpiredIdempotencyKeys deletes finalized keys older than the
// retention window; returns rows removed.
func (r *BookingRepository) PurgeExpiredIdempotencyKeys(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM booking_idempotency_keys
		WHERE updated_at < $1 AND status_code IS NOT NULL
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, portalID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT portal_id,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE portal_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, portalID, key).Scan(
		&rec.PortalID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	if err := row.Scan(
		&b.ID,
		&b.PortalID,
		&b.Title,
		&b.ContactID,
		&b.ContactName,
		&b.ContactEmail,
		&b.ContactPhone,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&cancelledAt,
		&b.CancelReason,
		&b.CreatedAt,
		&b.ResourceIDs,
	); err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}
