package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups memberships by the device class they discount.
type Category string

const (
	CategoryStory   Category = "story"   // PS5
	CategoryDriving Category = "driving" // driving simulator
)

// MembershipStatus is the lifecycle state of a membership.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipCancelled MembershipStatus = "cancelled"
)

// Membership is a prepaid block of play hours for one category. Hours are
// fractional (a 90 minute session uses 1.5 hours).
//
// Fields:
//  ID         – primary key.
//  UserID     – owner.
//  PlanType   – key into membership_plans (story_mode, god_mode, pit_pass, ...).
//  Category   – story or driving.
//  TotalHours – hours purchased.
//  HoursUsed  – hours consumed so far; never exceeds TotalHours.
//  Status     – active, expired or cancelled.
//  EndDate    – last calendar day the membership may be used.
//  CreatedAt  – purchase time; newer memberships are preferred.
type Membership struct {
	ID         uint64           // memberships.id
	UserID     uint64           // memberships.user_id
	PlanType   string           // memberships.plan_type
	Category   Category         // memberships.category
	TotalHours decimal.Decimal  // memberships.total_hours
	HoursUsed  decimal.Decimal  // memberships.hours_used
	Status     MembershipStatus // memberships.status
	EndDate    time.Time        // memberships.end_date
	CreatedAt  time.Time        // memberships.created_at
}

// Remaining returns the unused hours.
func (m Membership) Remaining() decimal.Decimal { return m.TotalHours.Sub(m.HoursUsed) }

// MembershipPlan describes what a plan type buys: the hourly rate charged
// for covered players and how many players one booking covers.
type MembershipPlan struct {
	PlanType       string          // membership_plans.plan_type
	Name           string          // membership_plans.display_name
	Category       Category        // membership_plans.category
	HourlyRate     decimal.Decimal // membership_plans.hourly_rate
	CoveredPlayers int             // membership_plans.covered_players
}
