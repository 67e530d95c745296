package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// ClosureRepo reads shop closures.
type ClosureRepo struct {
	db *sql.DB
}

// NewClosureRepo returns a ClosureRepo bound to db.
func NewClosureRepo(db *sql.DB) *ClosureRepo { return &ClosureRepo{db: db} }

// ListByDate returns the closures recorded for date. A closure with NULL
// start or end time closes the whole day.
func (r *ClosureRepo) ListByDate(ctx context.Context, date time.Time) ([]model.ShopClosure, error) {
	const q = `SELECT id, closure_date, TIME_TO_SEC(start_time) DIV 60, TIME_TO_SEC(end_time) DIV 60, reason
FROM shop_closures WHERE closure_date = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, date.Format(slot.DateFormat))
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make([]model.ShopClosure, 0)
	for rows.Next() {
		var (
			c          model.ShopClosure
			start, end sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.ClosureDate, &start, &end, &c.Reason); err != nil {
			return nil, err
		}
		if start.Valid && end.Valid {
			s, e := slot.Clock(start.Int64), slot.Clock(end.Int64)
			// 00:00 as an end time means midnight.
			if e == 0 {
				e = slot.Close
			}
			c.StartMinute, c.EndMinute = &s, &e
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err)
	}
	return out, nil
}
