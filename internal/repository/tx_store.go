package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/reservation"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// TxStore opens reservation transactions on a MySQL pool.
type TxStore struct {
	db *sql.DB
}

// NewTxStore returns a TxStore bound to db.
func NewTxStore(db *sql.DB) *TxStore { return &TxStore{db: db} }

// BeginTx implements reservation.Store.
func (s *TxStore) BeginTx(ctx context.Context) (reservation.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, translate(err)
	}
	return &bookingTx{tx: tx}, nil
}

// bookingTx adapts *sql.Tx to reservation.Tx.
type bookingTx struct {
	tx *sql.Tx
}

// LockSlots upserts one guard row per key. INSERT ... ON DUPLICATE KEY
// UPDATE takes an exclusive lock on every row, new or existing, in VALUES
// order, so callers that pass sorted keys cannot deadlock each other.
func (t *bookingTx) LockSlots(ctx context.Context, date time.Time, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO slot_locks (booking_date, lock_key) VALUES `)
	args := make([]any, 0, len(keys)*2)
	day := date.Format(slot.DateFormat)
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?)")
		args = append(args, day, k)
	}
	sb.WriteString(` ON DUPLICATE KEY UPDATE lock_key = VALUES(lock_key)`)
	_, err := t.tx.ExecContext(ctx, sb.String(), args...)
	return translate(err)
}

// LockOverlapping reads the live bookings overlapping [start, start+duration)
// with FOR UPDATE.
func (t *bookingTx) LockOverlapping(ctx context.Context, date time.Time, start slot.Clock, duration int) ([]model.Booking, error) {
	const q = bookingColumns + `
WHERE b.booking_date = ? AND b.status <> 'cancelled'
  AND TIME_TO_SEC(b.start_time) < ?
  AND TIME_TO_SEC(b.start_time) + b.duration_minutes * 60 > ?
ORDER BY b.id, d.id
FOR UPDATE`
	end := start.Add(duration)
	return queryBookings(ctx, t.tx, q, date.Format(slot.DateFormat), int(end)*60, int(start)*60)
}

// InsertBooking inserts b and fills in its ID and timestamps.
func (t *bookingTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, customer_name, customer_phone, booking_date, start_time,
       duration_minutes, total_price, status, booking_type, membership_id, membership_rate,
       promo_code_id, bonus_minutes)
VALUES (?, ?, ?, ?, SEC_TO_TIME(?), ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := t.tx.ExecContext(ctx, q,
		b.UserID, b.CustomerName, b.CustomerPhone, b.BookingDate.Format(slot.DateFormat), int(b.StartMinute)*60,
		b.DurationMinutes, b.TotalPrice, string(b.Status), string(b.BookingType), b.MembershipID, b.MembershipRate,
		b.PromoCodeID, b.BonusMinutes,
	)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	// Read back the defaults the database filled in.
	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	return translate(t.tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt))
}

// InsertDevices inserts every device row in a single statement.
func (t *bookingTx) InsertDevices(ctx context.Context, bookingID uint64, devices []model.BookingDevice) error {
	if len(devices) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO booking_devices (booking_id, device_type, device_number, player_count, price) VALUES `)
	args := make([]any, 0, len(devices)*5)
	for i, d := range devices {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, bookingID, string(d.DeviceType), d.DeviceNumber, d.PlayerCount, d.Price)
	}
	_, err := t.tx.ExecContext(ctx, sb.String(), args...)
	return translate(err)
}

func (t *bookingTx) Commit() error   { return translate(t.tx.Commit()) }
func (t *bookingTx) Rollback() error { return t.tx.Rollback() }
