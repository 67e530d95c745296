package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

func TestMembershipRepoActiveForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	older := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs(7, "2026-01-15").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "plan_type", "category", "total_hours", "hours_used", "status", "end_date", "created_at"}).
			AddRow(3, 7, "god_mode", "story", "10.00", "9.50", "active", end, newer).
			AddRow(1, 7, "pit_pass", "driving", "5.00", "0.00", "active", end, older))

	list, err := NewMembershipRepo(db).ActiveForUser(context.Background(), 7, day)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.CategoryStory, list[0].Category)
	assert.Equal(t, "0.5", list[0].Remaining().String())
	assert.Equal(t, model.MembershipActive, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMembershipRepoAddHoursUsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("SET hours_used = LEAST(total_hours, hours_used + ?) WHERE id = ?")).
		WithArgs(decimal.RequireFromString("1.5"), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewMembershipRepo(db).AddHoursUsed(context.Background(), 3, decimal.RequireFromString("1.5")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepoGetByType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPlanRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM membership_plans WHERE plan_type = ?")).
		WithArgs("god_mode").
		WillReturnRows(sqlmock.NewRows([]string{"plan_type", "display_name", "category", "hourly_rate", "covered_players"}).
			AddRow("god_mode", "God Mode Pass", "story", "120.00", 2))
	p, err := repo.GetByType(context.Background(), "god_mode")
	require.NoError(t, err)
	assert.Equal(t, 2, p.CoveredPlayers)
	assert.Equal(t, "120", p.HourlyRate.String())

	mock.ExpectQuery(regexp.QuoteMeta("FROM membership_plans")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"plan_type", "display_name", "category", "hourly_rate", "covered_players"}))
	_, err = repo.GetByType(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClosureRepoListByDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM shop_closures WHERE closure_date = ?")).
		WithArgs("2026-01-15").
		WillReturnRows(sqlmock.NewRows([]string{"id", "closure_date", "start_minute", "end_minute", "reason"}).
			AddRow(1, day, 17*60, 0, "private event").
			AddRow(2, day, nil, nil, "maintenance"))

	list, err := NewClosureRepo(db).ListByDate(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].EndMinute)
	assert.Equal(t, slot.Close, *list[0].EndMinute)
	assert.True(t, list[0].Covers(slot.Clock(21*60), 120))
	assert.False(t, list[0].Covers(slot.Clock(16*60), 60))
	assert.Nil(t, list[1].StartMinute)
	assert.True(t, list[1].Covers(slot.Open, 30))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoAndLoyaltyCounters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE promo_codes SET times_used = times_used + 1 WHERE id = ?")).
		WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, NewPromoRepo(db).IncrementUsage(ctx, 4))

	users := NewUserRepo(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET loyalty_points = loyalty_points + ? WHERE id = ?")).
		WithArgs(26, 7).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, users.AddPoints(ctx, 7, 26))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET loyalty_points")).
		WithArgs(5, 999).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, users.AddPoints(ctx, 999, 5), apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
