package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/cache"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/pricing"
)

// MembershipSource lists a customer's memberships that are active and not
// expired on date, newest first.
type MembershipSource interface {
	ActiveForUser(ctx context.Context, userID uint64, date time.Time) ([]model.Membership, error)
}

// PlanCatalog resolves a plan type to its rate and coverage.
type PlanCatalog interface {
	Plan(ctx context.Context, planType string) (model.MembershipPlan, error)
}

// PlanLoader reads one plan from storage; it returns apperr.ErrNotFound
// when the plan has no row.
type PlanLoader func(ctx context.Context, planType string) (model.MembershipPlan, error)

// CachedPlans is a PlanCatalog that reads plans through an in-process cache
// and falls back to pricing.DefaultPlans for plan types without a row.
type CachedPlans struct {
	cache *cache.ReadThrough[string, model.MembershipPlan]
}

// NewCachedPlans wraps load in a read-through cache. load may be nil, in
// which case only the built-in plans are known.
func NewCachedPlans(load PlanLoader) *CachedPlans {
	return &CachedPlans{cache: cache.NewReadThrough(func(ctx context.Context, planType string) (model.MembershipPlan, error) {
		if load != nil {
			p, err := load(ctx, planType)
			if err == nil {
				return p, nil
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				return model.MembershipPlan{}, err
			}
		}
		if p, ok := pricing.DefaultPlans[planType]; ok {
			return p, nil
		}
		return model.MembershipPlan{}, apperr.ErrNotFound
	})}
}

// Plan implements PlanCatalog.
func (c *CachedPlans) Plan(ctx context.Context, planType string) (model.MembershipPlan, error) {
	return c.cache.Get(ctx, planType)
}

// QuoteRequest is the input to Quoter.Quote.
type QuoteRequest struct {
	UserID      *uint64
	Date        time.Time
	BookingType model.BookingType
	Lines       []pricing.Line
}

// Quoter joins a customer's memberships with their plans and prices a
// device selection.
type Quoter struct {
	Memberships MembershipSource
	Plans       PlanCatalog
	Log         logrus.FieldLogger
}

// NewQuoter builds a Quoter.
func NewQuoter(memberships MembershipSource, plans PlanCatalog, log logrus.FieldLogger) *Quoter {
	return &Quoter{Memberships: memberships, Plans: plans, Log: log}
}

// Quote prices the request. Guests and party bookings are priced without
// memberships.
func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) (*pricing.Result, error) {
	var cands []pricing.Candidate
	if req.UserID != nil && req.BookingType != model.BookingParty && q.Memberships != nil {
		ms, err := q.Memberships.ActiveForUser(ctx, *req.UserID, req.Date)
		if err != nil {
			return nil, apperr.Persistence("load memberships", err)
		}
		for _, m := range ms {
			plan, err := q.Plans.Plan(ctx, m.PlanType)
			if errors.Is(err, apperr.ErrNotFound) {
				q.Log.WithFields(logrus.Fields{"membership_id": m.ID, "plan_type": m.PlanType}).Warn("membership has unknown plan type, skipping")
				continue
			}
			if err != nil {
				return nil, apperr.Persistence("load membership plan", err)
			}
			cands = append(cands, pricing.Candidate{Membership: m, Plan: plan})
		}
	}
	return pricing.Quote(pricing.Request{BookingType: req.BookingType, Lines: req.Lines, Candidates: cands})
}
