package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

var bookingCols = []string{
	"id", "user_id", "customer_name", "customer_phone", "booking_date",
	"start_minute", "duration_minutes", "total_price", "status",
	"booking_type", "membership_id", "membership_rate", "promo_code_id", "bonus_minutes",
	"created_at", "updated_at",
	"d_id", "device_type", "device_number", "player_count", "price",
}

var day = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func TestBookingRepoListByDateGroupsDevices(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(bookingCols).
		AddRow(1, 7, "Asha", "9876543210", day, 18*60, 60, "400.00", "confirmed", "regular", nil, false, nil, 0, created, created,
			10, "ps5", 1, 2, "260.00").
		AddRow(1, 7, "Asha", "9876543210", day, 18*60, 60, "400.00", "confirmed", "regular", nil, false, nil, 0, created, created,
			11, "driving_sim", nil, 1, "140.00").
		AddRow(2, nil, "Ravi", "9876500000", day, 19*60, 30, "80.00", "confirmed", "regular", nil, false, 4, 30, created, created,
			12, "ps5", 2, 1, "80.00")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.booking_date = ? AND b.status <> 'cancelled'")).
		WithArgs("2026-01-15").
		WillReturnRows(rows)

	list, err := NewBookingRepo(db).ListByDate(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, list, 2)

	first := list[0]
	assert.Equal(t, slot.Clock(18*60), first.StartMinute)
	assert.Equal(t, "400", first.TotalPrice.String())
	require.NotNil(t, first.UserID)
	assert.Equal(t, uint64(7), *first.UserID)
	require.Len(t, first.Devices, 2)
	assert.Equal(t, 1, first.Devices[0].Unit())
	assert.Equal(t, model.DeviceDriving, first.Devices[1].DeviceType)
	assert.Nil(t, first.Devices[1].DeviceNumber)

	second := list[1]
	assert.Nil(t, second.UserID)
	require.NotNil(t, second.PromoCodeID)
	assert.Equal(t, uint64(4), *second.PromoCodeID)
	assert.Equal(t, 30, second.BonusMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = ?")).WithArgs(99).WillReturnRows(sqlmock.NewRows(bookingCols))

	_, err = NewBookingRepo(db).GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = 'cancelled'")).
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewBookingRepo(db).Cancel(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoHardDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM booking_devices WHERE booking_id = ?")).
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bookings WHERE id = ?")).
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, NewBookingRepo(db).HardDelete(context.Background(), 5))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM booking_devices")).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bookings")).WithArgs(6).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, NewBookingRepo(db).HardDelete(context.Background(), 6), apperr.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateNoRows(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(sql.ErrNoRows), apperr.ErrNotFound)
	plain := errors.New("connection refused")
	assert.Same(t, plain, translate(plain))
}

func TestTranslateMySQLErrors(t *testing.T) {
	for _, n := range []uint16{errLockWaitTimeout, errDeadlock} {
		err := translate(&mysql.MySQLError{Number: n, Message: "lock"})
		assert.ErrorIs(t, err, apperr.ErrConflict)
		assert.True(t, apperr.Retryable(err))
	}
	dup := &mysql.MySQLError{Number: 1062, Message: "duplicate"}
	assert.Same(t, dup, translate(dup))
}
