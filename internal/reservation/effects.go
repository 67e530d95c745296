package reservation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/outbox"
	"github.com/iliyamo/lounge-reservation/internal/pricing"
	"github.com/iliyamo/lounge-reservation/internal/queue"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// Notifier delivers the admin notification for a new booking.
type Notifier interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// HoursLedger records membership hours spent.
type HoursLedger interface {
	AddHoursUsed(ctx context.Context, membershipID uint64, hours decimal.Decimal) error
}

// PromoCounter counts promo code redemptions.
type PromoCounter interface {
	IncrementUsage(ctx context.Context, promoID uint64) error
}

// LoyaltyAccount credits loyalty points.
type LoyaltyAccount interface {
	AddPoints(ctx context.Context, userID uint64, points int64) error
}

// CacheInvalidator drops cached availability for a date.
type CacheInvalidator interface {
	InvalidateDate(ctx context.Context, date time.Time) error
}

// Effects are the best-effort collaborators run after commit. Any of them
// may be nil.
type Effects struct {
	Notifier Notifier
	Hours    HoursLedger
	Promos   PromoCounter
	Loyalty  LoyaltyAccount
	Cache    CacheInvalidator
}

// PointsPerRupee is how many rupees earn one loyalty point.
const PointsPerRupee = 10

// LoyaltyPoints returns the points earned for a booking total.
func LoyaltyPoints(total decimal.Decimal) int64 {
	return total.Div(decimal.NewFromInt(PointsPerRupee)).IntPart()
}

func (s *Service) enqueue(t outbox.Task) {
	if s.Outbox == nil || t.Run == nil {
		return
	}
	if err := s.Outbox.Enqueue(t); err != nil {
		s.Log.WithFields(logrus.Fields{"task": t.Name, "booking_id": t.BookingID}).WithError(err).Error("could not queue post-commit task")
	}
}

func (s *Service) invalidateTask(b *model.Booking) outbox.Task {
	if s.Effects.Cache == nil {
		return outbox.Task{}
	}
	date := b.BookingDate
	return outbox.Task{Name: "availability_cache", BookingID: b.ID, Run: func(ctx context.Context) error {
		return s.Effects.Cache.InvalidateDate(ctx, date)
	}}
}

// afterCommit queues every side effect of a committed booking. None of
// them can undo the booking.
func (s *Service) afterCommit(b *model.Booking, quote *pricing.Result) {
	fx := s.Effects
	id := b.ID

	s.enqueue(s.invalidateTask(b))

	if fx.Notifier != nil {
		ev := confirmedEvent(b, s.Now())
		s.enqueue(outbox.Task{Name: "notify_admin", BookingID: id, Run: func(ctx context.Context) error {
			return fx.Notifier.PublishBookingConfirmed(ctx, ev)
		}})
	}
	if fx.Promos != nil && b.PromoCodeID != nil {
		promoID := *b.PromoCodeID
		s.enqueue(outbox.Task{Name: "promo_usage", BookingID: id, Run: func(ctx context.Context) error {
			return fx.Promos.IncrementUsage(ctx, promoID)
		}})
	}
	if fx.Hours != nil {
		for _, m := range quote.Memberships {
			s.enqueue(outbox.Task{Name: "membership_hours", BookingID: id, Run: func(ctx context.Context) error {
				return fx.Hours.AddHoursUsed(ctx, m.MembershipID, m.HoursToDeduct)
			}})
		}
	}
	if fx.Loyalty != nil && b.UserID != nil {
		if points := LoyaltyPoints(b.TotalPrice); points > 0 {
			userID := *b.UserID
			s.enqueue(outbox.Task{Name: "loyalty_points", BookingID: id, Run: func(ctx context.Context) error {
				return fx.Loyalty.AddPoints(ctx, userID, points)
			}})
		}
	}
}

func confirmedEvent(b *model.Booking, now time.Time) queue.BookingConfirmedEvent {
	ev := queue.BookingConfirmedEvent{
		BookingID:         b.ID,
		UserID:            b.UserID,
		CustomerName:      b.CustomerName,
		CustomerPhone:     b.CustomerPhone,
		BookingType:       string(b.BookingType),
		BookingDate:       b.BookingDate.Format(slot.DateFormat),
		StartTime:         b.StartMinute.String(),
		EndTime:           b.End().String(),
		TotalPrice:        b.TotalPrice.StringFixed(2),
		MembershipApplied: b.MembershipRate,
		ConfirmedAt:       now.UTC().Format(time.RFC3339),
	}
	for _, d := range b.Devices {
		ev.Devices = append(ev.Devices, queue.DeviceEntry{
			DeviceType: string(d.DeviceType), Unit: d.Unit(), PlayerCount: d.PlayerCount,
		})
	}
	return ev
}
