package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// bookingColumns selects a booking joined with its devices. start_time is
// read as minutes after midnight so it scans straight into slot.Clock.
const bookingColumns = `SELECT b.id, b.user_id, b.customer_name, b.customer_phone, b.booking_date,
       TIME_TO_SEC(b.start_time) DIV 60, b.duration_minutes, b.total_price, b.status,
       b.booking_type, b.membership_id, b.membership_rate, b.promo_code_id, b.bonus_minutes,
       b.created_at, b.updated_at,
       d.id, d.device_type, d.device_number, d.player_count, d.price
FROM bookings b
LEFT JOIN booking_devices d ON d.booking_id = b.id`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// BookingRepo reads and retires bookings outside the reservation
// transaction.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// ListByDate returns every non-cancelled booking on date with its devices,
// in start order.
func (r *BookingRepo) ListByDate(ctx context.Context, date time.Time) ([]model.Booking, error) {
	const q = bookingColumns + `
WHERE b.booking_date = ? AND b.status <> 'cancelled'
ORDER BY b.start_time, b.id, d.id`
	return queryBookings(ctx, r.db, q, date.Format(slot.DateFormat))
}

// GetByID returns a booking (in any status) with its devices.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = bookingColumns + `
WHERE b.id = ?
ORDER BY d.id`
	list, err := queryBookings(ctx, r.db, q, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &list[0], nil
}

// Cancel marks a booking cancelled. Cancelling twice is a no-op.
func (r *BookingRepo) Cancel(ctx context.Context, id uint64) error {
	const q = `UPDATE bookings SET status = 'cancelled' WHERE id = ? AND status <> 'cancelled'`
	_, err := r.db.ExecContext(ctx, q, id)
	return translate(err)
}

// HardDelete removes a booking and its devices in one transaction.
func (r *BookingRepo) HardDelete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_devices WHERE booking_id = ?`, id); err != nil {
		return translate(err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return translate(err)
	}
	committed = true
	return nil
}

// queryBookings runs a bookingColumns query and folds the joined device
// rows into their bookings, preserving row order.
func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]model.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var (
			b            model.Booking
			userID       sql.NullInt64
			membershipID sql.NullInt64
			promoID      sql.NullInt64
			devID        sql.NullInt64
			devType      sql.NullString
			devNumber    sql.NullInt64
			devPlayers   sql.NullInt64
			devPrice     decimal.NullDecimal
		)
		if err := rows.Scan(
			&b.ID, &userID, &b.CustomerName, &b.CustomerPhone, &b.BookingDate,
			&b.StartMinute, &b.DurationMinutes, &b.TotalPrice, &b.Status,
			&b.BookingType, &membershipID, &b.MembershipRate, &promoID, &b.BonusMinutes,
			&b.CreatedAt, &b.UpdatedAt,
			&devID, &devType, &devNumber, &devPlayers, &devPrice,
		); err != nil {
			return nil, err
		}
		idx, ok := index[b.ID]
		if !ok {
			b.UserID = nullID(userID)
			b.MembershipID = nullID(membershipID)
			b.PromoCodeID = nullID(promoID)
			b.Devices = []model.BookingDevice{}
			idx = len(out)
			index[b.ID] = idx
			out = append(out, b)
		}
		if !devID.Valid {
			continue
		}
		d := model.BookingDevice{
			ID:          uint64(devID.Int64),
			BookingID:   b.ID,
			DeviceType:  model.DeviceType(devType.String),
			PlayerCount: int(devPlayers.Int64),
			Price:       devPrice.Decimal,
		}
		if devNumber.Valid {
			n := int(devNumber.Int64)
			d.DeviceNumber = &n
		}
		out[idx].Devices = append(out[idx].Devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func nullID(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	id := uint64(v.Int64)
	return &id
}
