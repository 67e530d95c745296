// Package availability answers "can these devices be booked for this range"
// and renders the per-slot status grid shown to customers. Results here are
// advisory; the reservation transaction repeats Evaluate under row locks.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/capacity"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// DeviceRequest is one device asked for in a booking.
type DeviceRequest struct {
	DeviceType  model.DeviceType `json:"device_type" validate:"required,oneof=ps5 driving_sim"`
	Unit        int              `json:"device_number,omitempty" validate:"gte=0,lte=3"`
	PlayerCount int              `json:"player_count" validate:"required,gte=1,lte=4"`
}

// BookingSource loads every booking (with devices) for one date.
type BookingSource interface {
	ListByDate(ctx context.Context, date time.Time) ([]model.Booking, error)
}

// ClosureSource loads the shop closures recorded for one date.
type ClosureSource interface {
	ListByDate(ctx context.Context, date time.Time) ([]model.ShopClosure, error)
}

// Status values of a SlotStatus.
const (
	StatusAvailable = "available"
	StatusPartial   = "partial"
	StatusFull      = "full"
	StatusClosed    = "closed"
)

// SlotStatus is one cell of the public day grid.
type SlotStatus struct {
	Time             slot.Clock `json:"time"`
	Status           string     `json:"status"`
	AvailablePS5     []int      `json:"available_ps5"`
	AvailableDriving bool       `json:"available_driving"`
	TotalPS5Players  int        `json:"total_ps5_players"`
	BookedPS5Units   []int      `json:"booked_ps5_units"`
	Reason           string     `json:"reason,omitempty"`
}

// Result is returned by Check when the request fits.
type Result struct {
	Date            string             `json:"date"`
	Start           slot.Clock         `json:"start_time"`
	End             slot.Clock         `json:"end_time"`
	Available       bool               `json:"available"`
	Occupancy       capacity.Occupancy `json:"occupancy"`
	RemainingPlayer int                `json:"remaining_ps5_players"`
}

// Checker reads bookings and closures to answer availability questions.
type Checker struct {
	Bookings BookingSource
	Closures ClosureSource
}

// NewChecker wires a Checker. closures may be nil when closures are not tracked.
func NewChecker(bookings BookingSource, closures ClosureSource) *Checker {
	return &Checker{Bookings: bookings, Closures: closures}
}

// Evaluate checks a request against a ledger. It is pure so the reservation
// transaction can run it on a ledger built from locked rows.
func Evaluate(l *capacity.Ledger, start slot.Clock, duration int, kind model.BookingType, devices []DeviceRequest) error {
	occ := l.Range(start, duration)
	busy := func(device model.DeviceType, unit int) error {
		return &apperr.DeviceUnavailableError{
			Device: string(device), Unit: unit,
			Start: start.String(), End: start.Add(duration).String(),
		}
	}

	if kind == model.BookingParty {
		if len(occ.OccupiedPS5) > 0 {
			return busy(model.DevicePS5, occ.OccupiedPS5[0])
		}
		if occ.DrivingBooked {
			return busy(model.DeviceDriving, 0)
		}
		return nil
	}

	requested := 0
	for _, d := range devices {
		switch d.DeviceType {
		case model.DevicePS5:
			if !occ.UnitFree(d.Unit) {
				return busy(model.DevicePS5, d.Unit)
			}
			requested += d.PlayerCount
		case model.DeviceDriving:
			if occ.DrivingBooked {
				return busy(model.DeviceDriving, 0)
			}
		}
	}
	if requested > 0 && occ.TotalPS5Players+requested > capacity.MaxPS5Players {
		return &apperr.CapacityExceededError{
			Existing: occ.TotalPS5Players, Requested: requested, Limit: capacity.MaxPS5Players,
			Start: start.String(), End: start.Add(duration).String(),
		}
	}
	return nil
}

// ValidateDevices checks the shape of a device list for a regular booking.
func ValidateDevices(devices []DeviceRequest) error {
	if len(devices) == 0 {
		return apperr.Invalid("devices", "select at least one device")
	}
	seen := map[int]bool{}
	sims := 0
	for i, d := range devices {
		field := fmt.Sprintf("devices[%d]", i)
		switch d.DeviceType {
		case model.DevicePS5:
			if d.Unit < 1 || d.Unit > capacity.PS5Units {
				return apperr.Invalid(field, "PS5 unit must be between 1 and %d", capacity.PS5Units)
			}
			if seen[d.Unit] {
				return apperr.Invalid(field, "PS5 Unit %d selected twice", d.Unit)
			}
			seen[d.Unit] = true
			if d.PlayerCount < 1 || d.PlayerCount > capacity.PlayersPerPS5 {
				return apperr.Invalid(field, "a PS5 takes 1 to %d players", capacity.PlayersPerPS5)
			}
		case model.DeviceDriving:
			if d.Unit != 0 {
				return apperr.Invalid(field, "the driving simulator has no unit number")
			}
			if d.PlayerCount != capacity.DrivingPlayers {
				return apperr.Invalid(field, "the driving simulator takes exactly one player")
			}
			sims++
			if sims > 1 {
				return apperr.Invalid(field, "there is only one driving simulator")
			}
		default:
			return apperr.Invalid(field, "unknown device type %q", d.DeviceType)
		}
	}
	return nil
}

// PartyDevices expands a party booking into every device in the lounge. The
// PS5 units are filled greedily (4, 4, 2) so the party takes exactly the
// aggregate cap.
func PartyDevices() []DeviceRequest {
	out := make([]DeviceRequest, 0, capacity.PS5Units+1)
	left := capacity.MaxPS5Players
	for u := 1; u <= capacity.PS5Units; u++ {
		n := capacity.PlayersPerPS5
		if rest := capacity.PS5Units - u; left-n < rest {
			n = left - rest
		}
		left -= n
		out = append(out, DeviceRequest{DeviceType: model.DevicePS5, Unit: u, PlayerCount: n})
	}
	return append(out, DeviceRequest{DeviceType: model.DeviceDriving, PlayerCount: capacity.DrivingPlayers})
}

// ClosedFor returns the first closure covering the range, if any.
func ClosedFor(closures []model.ShopClosure, start slot.Clock, duration int) (model.ShopClosure, bool) {
	for _, c := range closures {
		if c.Covers(start, duration) {
			return c, true
		}
	}
	return model.ShopClosure{}, false
}

func (c *Checker) closures(ctx context.Context, date time.Time) ([]model.ShopClosure, error) {
	if c.Closures == nil {
		return nil, nil
	}
	cl, err := c.Closures.ListByDate(ctx, date)
	if err != nil {
		return nil, apperr.Persistence("list closures", err)
	}
	return cl, nil
}

func (c *Checker) ledger(ctx context.Context, date time.Time) (*capacity.Ledger, error) {
	bookings, err := c.Bookings.ListByDate(ctx, date)
	if err != nil {
		return nil, apperr.Persistence("list bookings", err)
	}
	return capacity.New(bookings), nil
}

// Check validates and evaluates a request. A nil error means the devices
// were free when the bookings were read.
func (c *Checker) Check(ctx context.Context, date time.Time, start slot.Clock, duration int, kind model.BookingType, devices []DeviceRequest) (*Result, error) {
	if err := slot.ValidateRange(start, duration); err != nil {
		return nil, err
	}
	if kind == model.BookingParty {
		devices = nil
	} else if err := ValidateDevices(devices); err != nil {
		return nil, err
	}
	closures, err := c.closures(ctx, date)
	if err != nil {
		return nil, err
	}
	if cl, ok := ClosedFor(closures, start, duration); ok {
		return nil, &apperr.ClosedError{Date: date.Format(slot.DateFormat), Reason: cl.Reason}
	}
	l, err := c.ledger(ctx, date)
	if err != nil {
		return nil, err
	}
	if err := Evaluate(l, start, duration, kind, devices); err != nil {
		return nil, err
	}
	occ := l.Range(start, duration)
	return &Result{
		Date:            date.Format(slot.DateFormat),
		Start:           start,
		End:             start.Add(duration),
		Available:       true,
		Occupancy:       occ,
		RemainingPlayer: occ.RemainingPS5Players(),
	}, nil
}

// Range returns the occupancy across a range without evaluating a request.
func (c *Checker) Range(ctx context.Context, date time.Time, start slot.Clock, duration int) (*capacity.Occupancy, error) {
	l, err := c.ledger(ctx, date)
	if err != nil {
		return nil, err
	}
	occ := l.Range(start, duration)
	return &occ, nil
}

// At returns the occupancy at a single instant.
func (c *Checker) At(ctx context.Context, date time.Time, t slot.Clock) (*capacity.Occupancy, error) {
	return c.Range(ctx, date, t, 1)
}

// DayGrid renders every public slot of the date. Closures override
// occupancy.
func (c *Checker) DayGrid(ctx context.Context, date time.Time) ([]SlotStatus, error) {
	closures, err := c.closures(ctx, date)
	if err != nil {
		return nil, err
	}
	l, err := c.ledger(ctx, date)
	if err != nil {
		return nil, err
	}
	grid := make([]SlotStatus, 0, len(slot.DaySlots()))
	for _, t := range slot.DaySlots() {
		occ := l.Range(t, slot.Step)
		s := SlotStatus{
			Time:             t,
			AvailablePS5:     occ.AvailablePS5,
			AvailableDriving: occ.AvailableDriving,
			TotalPS5Players:  occ.TotalPS5Players,
			BookedPS5Units:   occ.OccupiedPS5,
		}
		if cl, ok := ClosedFor(closures, t, slot.Step); ok {
			s.Status = StatusClosed
			s.Reason = cl.Reason
			s.AvailablePS5 = []int{}
			s.AvailableDriving = false
		} else {
			s.Status = statusOf(occ)
		}
		grid = append(grid, s)
	}
	return grid, nil
}

func statusOf(o capacity.Occupancy) string {
	ps5Full := len(o.AvailablePS5) == 0 || o.RemainingPS5Players() == 0
	switch {
	case ps5Full && o.DrivingBooked:
		return StatusFull
	case o.Booked:
		return StatusPartial
	}
	return StatusAvailable
}
