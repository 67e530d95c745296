package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
)

// UserRepo reads customer accounts and credits loyalty points.
type UserRepo struct{ DB *sql.DB }

// NewUserRepo returns a UserRepo bound to db.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,phone,role,loyalty_points,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.LoyaltyPoints, &u.CreatedAt)
	return u, translate(err)
}

// AddPoints credits loyalty points to a user.
func (r *UserRepo) AddPoints(ctx context.Context, userID uint64, points int64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET loyalty_points = loyalty_points + ? WHERE id = ?", points, userID)
	if err != nil {
		return translate(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
