package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// PS5 prices are per unit and rise in player bands: {1}, {2,3}, {4}.
var ps5Rates = map[int]map[int]int64{
	1: {30: 80, 60: 150, 90: 220, 120: 280},
	2: {30: 140, 60: 260, 90: 380, 120: 480},
	4: {30: 200, 60: 360, 90: 520, 120: 660},
}

var drivingRates = map[int]int64{30: 150, 60: 250, 90: 350, 120: 450}

// PartyHourlyRate is charged for a whole-lounge party booking.
var PartyHourlyRate = decimal.NewFromInt(1500)

// DefaultPlans is the built-in plan catalog used when a plan type has no
// row in membership_plans.
var DefaultPlans = map[string]model.MembershipPlan{
	"story_mode": {PlanType: "story_mode", Name: "Story Mode Pass", Category: model.CategoryStory, HourlyRate: decimal.NewFromInt(100), CoveredPlayers: 1},
	"god_mode":   {PlanType: "god_mode", Name: "God Mode Pass", Category: model.CategoryStory, HourlyRate: decimal.NewFromInt(120), CoveredPlayers: 2},
	"pit_pass":   {PlanType: "pit_pass", Name: "Pit Pass", Category: model.CategoryDriving, HourlyRate: decimal.NewFromInt(180), CoveredPlayers: 1},
}

func band(players int) int {
	switch {
	case players <= 1:
		return 1
	case players <= 3:
		return 2
	}
	return 4
}

// BasePrice is the non-member price of one device for one range.
func BasePrice(device model.DeviceType, players, duration int) (decimal.Decimal, error) {
	if !slot.ValidDuration(duration) {
		return decimal.Zero, apperr.Invalid("duration_minutes", "must be one of 30, 60, 90 or 120 minutes")
	}
	switch device {
	case model.DevicePS5:
		if players < 1 || players > 4 {
			return decimal.Zero, apperr.Invalid("player_count", "a PS5 takes 1 to 4 players")
		}
		return decimal.NewFromInt(ps5Rates[band(players)][duration]), nil
	case model.DeviceDriving:
		if players != 1 {
			return decimal.Zero, apperr.Invalid("player_count", "the driving simulator takes exactly one player")
		}
		return decimal.NewFromInt(drivingRates[duration]), nil
	}
	return decimal.Zero, apperr.Invalid("device_type", "unknown device type %q", device)
}

// Hours converts minutes to fractional hours.
func Hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
}

// PartyPrice is the flat party charge for a duration.
func PartyPrice(duration int) decimal.Decimal {
	return PartyHourlyRate.Mul(Hours(duration)).Round(2)
}
