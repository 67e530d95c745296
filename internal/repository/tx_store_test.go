package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

func TestTxStoreReservationFlow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO slot_locks (booking_date, lock_key) VALUES (?, ?),(?, ?) ON DUPLICATE KEY UPDATE")).
		WithArgs("2026-01-15", "ps5@18:00", "2026-01-15", "ps5@18:30").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("2026-01-15", 19*3600, 18*3600).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(nil, "Asha", "9876543210", "2026-01-15", 18*3600, 60, sqlmock.AnyArg(), "confirmed", "regular", nil, false, nil, 0).
		WillReturnResult(sqlmock.NewResult(42, 1))
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT created_at, updated_at FROM bookings WHERE id = ?")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_devices (booking_id, device_type, device_number, player_count, price) VALUES (?, ?, ?, ?, ?)")).
		WithArgs(42, "ps5", 1, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := NewTxStore(db).BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.LockSlots(ctx, day, []string{"ps5@18:00", "ps5@18:30"}))
	existing, err := tx.LockOverlapping(ctx, day, slot.Clock(18*60), 60)
	require.NoError(t, err)
	assert.Empty(t, existing)

	b := &model.Booking{
		CustomerName: "Asha", CustomerPhone: "9876543210", BookingDate: day,
		StartMinute: slot.Clock(18 * 60), DurationMinutes: 60, TotalPrice: decimal.NewFromInt(260),
		Status: model.StatusConfirmed, BookingType: model.BookingRegular,
	}
	require.NoError(t, tx.InsertBooking(ctx, b))
	assert.Equal(t, uint64(42), b.ID)
	assert.Equal(t, now, b.CreatedAt)

	unit := 1
	require.NoError(t, tx.InsertDevices(ctx, b.ID, []model.BookingDevice{
		{DeviceType: model.DevicePS5, DeviceNumber: &unit, PlayerCount: 2, Price: decimal.NewFromInt(260)},
	}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxStoreLockTimeoutIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO slot_locks")).
		WillReturnError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"})
	mock.ExpectRollback()

	tx, err := NewTxStore(db).BeginTx(ctx)
	require.NoError(t, err)
	err = tx.LockSlots(ctx, day, []string{"driving_sim@18:00"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxStoreNoKeysNoDevices(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := NewTxStore(db).BeginTx(ctx)
	require.NoError(t, err)
	assert.NoError(t, tx.LockSlots(ctx, day, nil))
	assert.NoError(t, tx.InsertDevices(ctx, 1, nil))
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
