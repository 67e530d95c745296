// Package reservation turns a validated booking request into committed
// booking rows. The capacity checks are repeated inside a transaction that
// holds row locks on every slot the request touches, so two requests for
// the same device and time can never both commit.
package reservation

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/availability"
	"github.com/iliyamo/lounge-reservation/internal/capacity"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/outbox"
	"github.com/iliyamo/lounge-reservation/internal/pricing"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// Store opens reservation transactions.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx is the set of locking reads and writes a reservation needs. All reads
// lock what they return until Commit or Rollback.
type Tx interface {
	// LockSlots takes the guard rows for the given keys on date, creating
	// them if needed. Keys arrive sorted.
	LockSlots(ctx context.Context, date time.Time, keys []string) error
	// LockOverlapping returns the non-cancelled bookings (with devices)
	// overlapping [start, start+duration) on date.
	LockOverlapping(ctx context.Context, date time.Time, start slot.Clock, duration int) ([]model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	InsertDevices(ctx context.Context, bookingID uint64, devices []model.BookingDevice) error
	Commit() error
	Rollback() error
}

// BookingStore reads and retires committed bookings.
type BookingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	Cancel(ctx context.Context, id uint64) error
	HardDelete(ctx context.Context, id uint64) error
}

// Enqueuer accepts post-commit tasks.
type Enqueuer interface {
	Enqueue(t outbox.Task) error
}

// Request is a booking as submitted by a customer or the front desk.
type Request struct {
	UserID          *uint64
	CustomerName    string
	CustomerPhone   string
	Date            string // YYYY-MM-DD
	StartTime       string // HH:MM
	DurationMinutes int
	BookingType     model.BookingType
	Devices         []availability.DeviceRequest
	PromoCodeID     *uint64
	BonusMinutes    int
}

// Result is returned for a committed booking.
type Result struct {
	BookingID uint64          `json:"booking_id"`
	Booking   *model.Booking  `json:"-"`
	Quote     *pricing.Result `json:"quote"`
}

// Deps collects the collaborators of a Service.
type Deps struct {
	Store    Store
	Bookings BookingStore
	Quoter   *Quoter
	Closures availability.ClosureSource
	Outbox   Enqueuer
	Effects  Effects
	Log      logrus.FieldLogger
	Location *time.Location   // lounge time zone, used for "today"
	Now      func() time.Time // defaults to time.Now
}

// Service runs reservations.
type Service struct {
	Deps
}

// NewService returns a Service with defaults filled in.
func NewService(d Deps) *Service {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return &Service{Deps: d}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

type validated struct {
	date    time.Time
	start   slot.Clock
	kind    model.BookingType
	devices []availability.DeviceRequest
}

func (s *Service) validate(req Request) (validated, error) {
	var v validated
	name := strings.TrimSpace(req.CustomerName)
	if name == "" || len(name) > 100 {
		return v, apperr.Invalid("customer_name", "is required (at most 100 characters)")
	}
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(req.CustomerPhone))
	if !phonePattern.MatchString(phone) {
		return v, apperr.Invalid("customer_phone", "must be 10 to 15 digits")
	}
	date, err := slot.ParseDate(req.Date)
	if err != nil {
		return v, err
	}
	start, err := slot.ParseClock(req.StartTime)
	if err != nil {
		return v, apperr.Invalid("start_time", "must be formatted as HH:MM")
	}
	if err := slot.ValidateRange(start, req.DurationMinutes); err != nil {
		return v, err
	}

	now := s.Now().In(s.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case date.Before(today):
		return v, apperr.Invalid("date", "cannot book a date in the past")
	case date.Equal(today) && start <= slot.Clock(now.Hour()*60+now.Minute()):
		return v, apperr.Invalid("start_time", "this slot has already started")
	}

	kind := req.BookingType
	if kind == "" {
		kind = model.BookingRegular
	}
	devices := req.Devices
	switch kind {
	case model.BookingParty:
		devices = availability.PartyDevices()
	case model.BookingRegular:
		if err := availability.ValidateDevices(devices); err != nil {
			return v, err
		}
	default:
		return v, apperr.Invalid("booking_type", "must be regular or party")
	}
	if req.BonusMinutes < 0 {
		return v, apperr.Invalid("bonus_minutes", "cannot be negative")
	}
	return validated{date: date, start: start, kind: kind, devices: devices}, nil
}

// LockKeys names the guard rows a request must hold: one per affected slot
// and resource class. PS5 units share a class because of the aggregate
// player cap. The result is sorted so concurrent requests lock in the
// same order.
func LockKeys(start slot.Clock, duration int, devices []availability.DeviceRequest) []string {
	classes := map[model.DeviceType]bool{}
	for _, d := range devices {
		classes[d.DeviceType] = true
	}
	var keys []string
	for _, t := range slot.AffectedSlots(start, duration) {
		for c := range classes {
			keys = append(keys, string(c)+"@"+t.String())
		}
	}
	sort.Strings(keys)
	return keys
}

func linesFor(devices []availability.DeviceRequest, duration int) []pricing.Line {
	lines := make([]pricing.Line, len(devices))
	for i, d := range devices {
		lines[i] = pricing.Line{DeviceType: d.DeviceType, Unit: d.Unit, Players: d.PlayerCount, DurationMinutes: duration}
	}
	return lines
}

// Reserve validates, prices and commits a booking, then queues the
// post-commit side effects. Business conflicts come back as
// *apperr.DeviceUnavailableError or *apperr.CapacityExceededError.
func (s *Service) Reserve(ctx context.Context, req Request) (*Result, error) {
	v, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	if s.Closures != nil {
		closures, err := s.Closures.ListByDate(ctx, v.date)
		if err != nil {
			return nil, apperr.Persistence("list closures", err)
		}
		if cl, ok := availability.ClosedFor(closures, v.start, req.DurationMinutes); ok {
			return nil, &apperr.ClosedError{Date: v.date.Format(slot.DateFormat), Reason: cl.Reason}
		}
	}

	quote, err := s.Quoter.Quote(ctx, QuoteRequest{
		UserID: req.UserID, Date: v.date, BookingType: v.kind,
		Lines: linesFor(v.devices, req.DurationMinutes),
	})
	if err != nil {
		return nil, err
	}

	b := &model.Booking{
		UserID:          req.UserID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		BookingDate:     v.date,
		StartMinute:     v.start,
		DurationMinutes: req.DurationMinutes,
		TotalPrice:      quote.TotalPrice,
		Status:          model.StatusConfirmed,
		BookingType:     v.kind,
		PromoCodeID:     req.PromoCodeID,
		BonusMinutes:    req.BonusMinutes,
	}
	if quote.Membership != nil {
		id := quote.Membership.MembershipID
		b.MembershipID = &id
		b.MembershipRate = true
	}
	for i, d := range v.devices {
		dev := model.BookingDevice{DeviceType: d.DeviceType, PlayerCount: d.PlayerCount, Price: quote.Breakdown[i].Price}
		if d.DeviceType == model.DevicePS5 {
			u := d.Unit
			dev.DeviceNumber = &u
		}
		b.Devices = append(b.Devices, dev)
	}

	if err := s.commit(ctx, b, v); err != nil {
		s.Log.WithFields(logrus.Fields{
			"date":  v.date.Format(slot.DateFormat),
			"start": v.start.String(),
			"code":  apperr.Code(err),
		}).WithError(err).Info("reservation rejected")
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"date":       v.date.Format(slot.DateFormat),
		"start":      v.start.String(),
		"total":      b.TotalPrice.String(),
	}).Info("reservation committed")

	s.afterCommit(b, quote)
	return &Result{BookingID: b.ID, Booking: b, Quote: quote}, nil
}

func (s *Service) commit(ctx context.Context, b *model.Booking, v validated) error {
	tx, err := s.Store.BeginTx(ctx)
	if err != nil {
		return apperr.Persistence("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := tx.LockSlots(ctx, b.BookingDate, LockKeys(b.StartMinute, b.DurationMinutes, v.devices)); err != nil {
		return apperr.Persistence("lock slots", err)
	}
	existing, err := tx.LockOverlapping(ctx, b.BookingDate, b.StartMinute, b.DurationMinutes)
	if err != nil {
		return apperr.Persistence("lock overlapping bookings", err)
	}
	if err := availability.Evaluate(capacity.New(existing), b.StartMinute, b.DurationMinutes, v.kind, v.devices); err != nil {
		return err
	}
	if err := tx.InsertBooking(ctx, b); err != nil {
		return apperr.Persistence("insert booking", err)
	}
	for i := range b.Devices {
		b.Devices[i].BookingID = b.ID
	}
	if err := tx.InsertDevices(ctx, b.ID, b.Devices); err != nil {
		return apperr.Persistence("insert booking devices", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Persistence("commit", err)
	}
	committed = true
	return nil
}

// Get returns a booking with its devices.
func (s *Service) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	return s.Bookings.GetByID(ctx, id)
}

// Cancel soft-deletes a booking. When userID is set the booking must belong
// to that user. Membership hours already deducted are not restored.
func (s *Service) Cancel(ctx context.Context, id uint64, userID *uint64) error {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if userID != nil && (b.UserID == nil || *b.UserID != *userID) {
		return apperr.ErrForbidden
	}
	if b.Status == model.StatusCancelled {
		return nil
	}
	if err := s.Bookings.Cancel(ctx, id); err != nil {
		return err
	}
	s.Log.WithField("booking_id", id).Info("booking cancelled")
	s.enqueue(s.invalidateTask(b))
	return nil
}

// HardDelete removes a booking and its devices. Admin only.
func (s *Service) HardDelete(ctx context.Context, id uint64) error {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Bookings.HardDelete(ctx, id); err != nil {
		return err
	}
	s.Log.WithField("booking_id", id).Warn("booking hard deleted")
	s.enqueue(s.invalidateTask(b))
	return nil
}
