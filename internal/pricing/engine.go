// Package pricing turns a device selection into a price. It is pure: the
// caller supplies the membership candidates and their plans, and the engine
// decides which one (if any) applies per category.
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// Line is one device to price.
type Line struct {
	DeviceType      model.DeviceType
	Unit            int
	Players         int
	DurationMinutes int
}

// Coverage is the membership applied to one line.
type Coverage struct {
	MembershipID   uint64
	PlanName       string
	HourlyRate     decimal.Decimal
	CoveredPlayers int
}

// Candidate pairs an active membership with its plan.
type Candidate struct {
	Membership model.Membership
	Plan       model.MembershipPlan
}

// Request is the input to Quote.
type Request struct {
	BookingType model.BookingType
	Lines       []Line
	Candidates  []Candidate
}

// LineQuote is the priced form of a Line.
type LineQuote struct {
	DeviceType        model.DeviceType `json:"device_type"`
	Unit              int              `json:"device_number,omitempty"`
	Players           int              `json:"player_count"`
	DurationMinutes   int              `json:"duration_minutes"`
	BasePrice         decimal.Decimal  `json:"base_price"`
	Price             decimal.Decimal  `json:"price"`
	Discount          decimal.Decimal  `json:"discount"`
	MembershipApplied bool             `json:"membership_applied"`
	CoveredPlayers    int              `json:"covered_players,omitempty"`
	MembershipPart    decimal.Decimal  `json:"membership_price,omitempty"`
	ExtraPlayersPart  decimal.Decimal  `json:"extra_players_price,omitempty"`
}

// Applied describes a membership that priced part of the booking.
type Applied struct {
	MembershipID   uint64          `json:"id"`
	PlanType       string          `json:"plan_type"`
	PlanName       string          `json:"plan_name"`
	Category       model.Category  `json:"category"`
	HourlyRate     decimal.Decimal `json:"hourly_rate"`
	CoveredPlayers int             `json:"covered_players"`
	HoursToDeduct  decimal.Decimal `json:"hours_to_deduct"`
	HoursRemaining decimal.Decimal `json:"hours_remaining"`
}

// Result is a full quote.
type Result struct {
	PS5Price            decimal.Decimal `json:"ps5_price"`
	DrivingPrice        decimal.Decimal `json:"driving_price"`
	OriginalPrice       decimal.Decimal `json:"original_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	Breakdown           []LineQuote     `json:"breakdown"`
	HasDiscount         bool            `json:"has_discount"`
	DiscountAmount      decimal.Decimal `json:"discount_amount"`
	DiscountPercentage  decimal.Decimal `json:"discount_percentage"`
	HoursWarning        bool            `json:"hours_warning"`
	HoursWarningMessage string          `json:"hours_warning_message,omitempty"`
	MembershipNote      string          `json:"membership_note,omitempty"`
	Membership          *Applied        `json:"membership"`
	Memberships         []Applied       `json:"memberships"`
}

// Price prices a single device. cov may be nil for non-members.
//
// Covered players pay the plan's hourly rate for the whole range; players
// beyond the coverage pay normal(players) - normal(covered), so the extra
// share follows the band table and is never negative. When the membership
// would not lower the price the line is left at its normal price and the
// membership is not applied.
func Price(device model.DeviceType, players, duration int, cov *Coverage) (LineQuote, error) {
	base, err := BasePrice(device, players, duration)
	if err != nil {
		return LineQuote{}, err
	}
	q := LineQuote{DeviceType: device, Players: players, DurationMinutes: duration, BasePrice: base, Price: base}
	if cov == nil || cov.CoveredPlayers <= 0 {
		return q, nil
	}
	covered := cov.CoveredPlayers
	if covered > players {
		covered = players
	}
	member := cov.HourlyRate.Mul(Hours(duration)).Round(2)
	extra := decimal.Zero
	if players > covered {
		coveredBase, err := BasePrice(device, covered, duration)
		if err != nil {
			return LineQuote{}, err
		}
		extra = base.Sub(coveredBase)
	}
	price := member.Add(extra)
	if price.GreaterThanOrEqual(base) {
		return q, nil
	}
	q.Price = price
	q.Discount = base.Sub(price)
	q.MembershipApplied = true
	q.CoveredPlayers = covered
	q.MembershipPart = member
	q.ExtraPlayersPart = extra
	return q, nil
}

// Quote prices a whole booking.
func Quote(req Request) (*Result, error) {
	if len(req.Lines) == 0 {
		return nil, apperr.Invalid("devices", "select at least one device")
	}
	res := &Result{Breakdown: make([]LineQuote, len(req.Lines)), Memberships: []Applied{}}

	if req.BookingType == model.BookingParty {
		if err := quoteParty(req.Lines, res); err != nil {
			return nil, err
		}
		return finish(res), nil
	}

	coverage := make([]*Coverage, len(req.Lines))
	applied := make([]Applied, 0, 2)
	targets := make([]int, 0, 2)
	var warnings []string
	for _, cat := range []model.Category{model.CategoryStory, model.CategoryDriving} {
		target, minutes := longestLine(req.Lines, cat)
		if target < 0 {
			continue
		}
		hours := Hours(minutes)
		cands := candidatesFor(req.Candidates, cat)
		if len(cands) == 0 {
			continue
		}
		chosen := -1
		for i, c := range cands {
			if c.Membership.Remaining().GreaterThanOrEqual(hours) {
				chosen = i
				break
			}
		}
		if chosen < 0 {
			newest := cands[0]
			warnings = append(warnings, fmt.Sprintf(
				"Your %s has %s hours left but this booking needs %s hours. Normal pricing applied.",
				planName(newest.Plan), newest.Membership.Remaining().StringFixed(1), hours.StringFixed(1)))
			continue
		}
		c := cands[chosen]
		coverage[target] = &Coverage{
			MembershipID:   c.Membership.ID,
			PlanName:       planName(c.Plan),
			HourlyRate:     c.Plan.HourlyRate,
			CoveredPlayers: c.Plan.CoveredPlayers,
		}
		targets = append(targets, target)
		applied = append(applied, Applied{
			MembershipID:   c.Membership.ID,
			PlanType:       c.Membership.PlanType,
			PlanName:       planName(c.Plan),
			Category:       cat,
			HourlyRate:     c.Plan.HourlyRate,
			CoveredPlayers: c.Plan.CoveredPlayers,
			HoursToDeduct:  hours,
			HoursRemaining: c.Membership.Remaining().Sub(hours),
		})
	}

	for i, l := range req.Lines {
		q, err := Price(l.DeviceType, l.Players, l.DurationMinutes, coverage[i])
		if err != nil {
			return nil, err
		}
		q.Unit = l.Unit
		res.Breakdown[i] = q
	}
	var notes []string
	for i, a := range applied {
		if res.Breakdown[targets[i]].MembershipApplied {
			res.Memberships = append(res.Memberships, a)
			continue
		}
		notes = append(notes, fmt.Sprintf(
			"Your %s rate is not lower than the normal price for this booking. Normal pricing applied and no hours were used.",
			a.PlanName))
	}
	res.MembershipNote = strings.Join(notes, " ")
	if len(warnings) > 0 {
		res.HoursWarning = true
		res.HoursWarningMessage = strings.Join(warnings, " ")
	}
	if len(res.Memberships) > 0 {
		m := res.Memberships[0]
		res.Membership = &m
	}
	return finish(res), nil
}

func quoteParty(lines []Line, res *Result) error {
	duration := lines[0].DurationMinutes
	if !slot.ValidDuration(duration) {
		return apperr.Invalid("duration_minutes", "must be one of 30, 60, 90 or 120 minutes")
	}
	total := PartyPrice(duration)
	share := total.Div(decimal.NewFromInt(int64(len(lines)))).RoundDown(2)
	rest := total.Sub(share.Mul(decimal.NewFromInt(int64(len(lines)))))
	for i, l := range lines {
		p := share
		if i == 0 {
			p = p.Add(rest)
		}
		res.Breakdown[i] = LineQuote{
			DeviceType: l.DeviceType, Unit: l.Unit, Players: l.Players, DurationMinutes: duration,
			BasePrice: p, Price: p, Discount: decimal.Zero,
		}
	}
	return nil
}

func finish(res *Result) *Result {
	for _, q := range res.Breakdown {
		res.OriginalPrice = res.OriginalPrice.Add(q.BasePrice)
		switch q.DeviceType {
		case model.DevicePS5:
			res.PS5Price = res.PS5Price.Add(q.Price)
		case model.DeviceDriving:
			res.DrivingPrice = res.DrivingPrice.Add(q.Price)
		}
	}
	res.TotalPrice = res.PS5Price.Add(res.DrivingPrice)
	res.DiscountAmount = res.OriginalPrice.Sub(res.TotalPrice)
	res.HasDiscount = res.DiscountAmount.IsPositive()
	if res.HasDiscount {
		res.DiscountPercentage = res.DiscountAmount.Div(res.OriginalPrice).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return res
}

// longestLine returns the index and duration of the category's longest line,
// first in request order on ties, or -1 when the category is absent.
func longestLine(lines []Line, cat model.Category) (int, int) {
	idx, minutes := -1, 0
	for i, l := range lines {
		if l.DeviceType.Category() != cat {
			continue
		}
		if l.DurationMinutes > minutes {
			idx, minutes = i, l.DurationMinutes
		}
	}
	return idx, minutes
}

// candidatesFor keeps active memberships of one category, newest first.
func candidatesFor(all []Candidate, cat model.Category) []Candidate {
	out := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.Membership.Category == cat && c.Membership.Status == model.MembershipActive && c.Plan.CoveredPlayers > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Membership.CreatedAt.After(out[j].Membership.CreatedAt)
	})
	return out
}

func planName(p model.MembershipPlan) string {
	if p.Name != "" {
		return p.Name
	}
	return p.PlanType
}
