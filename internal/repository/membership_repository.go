package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// MembershipRepo reads memberships and records hours spent.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo returns a MembershipRepo bound to db.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// ActiveForUser returns the user's active memberships whose end date is on
// or after date, newest first. Memberships with no hours left are included
// so pricing can warn about them.
func (r *MembershipRepo) ActiveForUser(ctx context.Context, userID uint64, date time.Time) ([]model.Membership, error) {
	const q = `SELECT id, user_id, plan_type, category, total_hours, hours_used, status, end_date, created_at
FROM memberships
WHERE user_id = ? AND status = 'active' AND end_date >= ?
ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, date.Format(slot.DateFormat))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.PlanType, &m.Category, &m.TotalHours, &m.HoursUsed,
			&m.Status, &m.EndDate, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// AddHoursUsed adds hours to a membership's usage, capped at its total so
// hours_used never exceeds total_hours.
func (r *MembershipRepo) AddHoursUsed(ctx context.Context, membershipID uint64, hours decimal.Decimal) error {
	const q = `UPDATE memberships SET hours_used = LEAST(total_hours, hours_used + ?) WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, hours, membershipID)
	return translate(err)
}

// PlanRepo reads the membership plan catalog.
type PlanRepo struct {
	db *sql.DB
}

// NewPlanRepo returns a PlanRepo bound to db.
func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

// GetByType returns one plan; apperr.ErrNotFound when it has no row.
func (r *PlanRepo) GetByType(ctx context.Context, planType string) (model.MembershipPlan, error) {
	const q = `SELECT plan_type, display_name, category, hourly_rate, covered_players
FROM membership_plans WHERE plan_type = ? LIMIT 1`
	var p model.MembershipPlan
	err := r.db.QueryRowContext(ctx, q, planType).Scan(&p.PlanType, &p.Name, &p.Category, &p.HourlyRate, &p.CoveredPlayers)
	if err != nil {
		return model.MembershipPlan{}, translate(err)
	}
	return p, nil
}
