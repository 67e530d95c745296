package repository

import (
	"context"
	"database/sql"
)

// PromoRepo maintains promo code usage counters.
type PromoRepo struct {
	db *sql.DB
}

// NewPromoRepo returns a PromoRepo bound to db.
func NewPromoRepo(db *sql.DB) *PromoRepo { return &PromoRepo{db: db} }

// IncrementUsage counts one redemption.
func (r *PromoRepo) IncrementUsage(ctx context.Context, promoID uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE promo_codes SET times_used = times_used + 1 WHERE id = ?`, promoID)
	return translate(err)
}
