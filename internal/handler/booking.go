package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/availability"
	"github.com/iliyamo/lounge-reservation/internal/middleware"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/pricing"
	"github.com/iliyamo/lounge-reservation/internal/reservation"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// BookingService is implemented by *reservation.Service.
type BookingService interface {
	Reserve(ctx context.Context, req reservation.Request) (*reservation.Result, error)
	Get(ctx context.Context, id uint64) (*model.Booking, error)
	Cancel(ctx context.Context, id uint64, userID *uint64) error
	HardDelete(ctx context.Context, id uint64) error
}

// QuoteService is implemented by *reservation.Quoter.
type QuoteService interface {
	Quote(ctx context.Context, req reservation.QuoteRequest) (*pricing.Result, error)
}

// UserLookup loads the signed-in customer so their name and phone can
// default the booking contact details.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// BookingHandler serves booking creation, quoting, lookup and
// cancellation. Routes are mounted behind OptionalJWT so guests and
// signed-in customers share them; the admin hard delete sits behind
// JWTAuth and RequireRole.
type BookingHandler struct {
	Bookings BookingService
	Quotes   QuoteService
	Users    UserLookup // may be nil
	Log      logrus.FieldLogger
}

// NewBookingHandler wires a BookingHandler. Bookings and Quotes must be
// non-nil.
func NewBookingHandler(bookings BookingService, quotes QuoteService, users UserLookup, log logrus.FieldLogger) *BookingHandler {
	if bookings == nil || quotes == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Quotes: quotes, Users: users, Log: log}
}

type createBookingRequest struct {
	CustomerName    string                       `json:"customer_name" validate:"omitempty,max=100"`
	CustomerPhone   string                       `json:"customer_phone" validate:"omitempty,max=20"`
	Date            string                       `json:"date" validate:"required"`
	StartTime       string                       `json:"start_time" validate:"required"`
	DurationMinutes int                          `json:"duration_minutes" validate:"required,oneof=30 60 90 120"`
	BookingType     model.BookingType            `json:"booking_type" validate:"omitempty,oneof=regular party"`
	Devices         []availability.DeviceRequest `json:"devices" validate:"omitempty,dive"`
	PromoCodeID     *uint64                      `json:"promo_code_id" validate:"omitempty,gt=0"`
	BonusMinutes    int                          `json:"bonus_minutes" validate:"gte=0"`
}

type quoteRequest struct {
	Date            string                       `json:"date" validate:"required"`
	DurationMinutes int                          `json:"duration_minutes" validate:"required,oneof=30 60 90 120"`
	BookingType     model.BookingType            `json:"booking_type" validate:"omitempty,oneof=regular party"`
	Devices         []availability.DeviceRequest `json:"devices" validate:"omitempty,dive"`
}

type deviceView struct {
	DeviceType   model.DeviceType `json:"device_type"`
	DeviceNumber *int             `json:"device_number,omitempty"`
	PlayerCount  int              `json:"player_count"`
	Price        decimal.Decimal  `json:"price"`
}

type bookingView struct {
	ID              uint64              `json:"id"`
	UserID          *uint64             `json:"user_id,omitempty"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	BookingDate     string              `json:"booking_date"`
	StartTime       slot.Clock          `json:"start_time"`
	EndTime         slot.Clock          `json:"end_time"`
	DurationMinutes int                 `json:"duration_minutes"`
	TotalPrice      decimal.Decimal     `json:"total_price"`
	Status          model.BookingStatus `json:"status"`
	BookingType     model.BookingType   `json:"booking_type"`
	MembershipRate  bool                `json:"membership_rate"`
	BonusMinutes    int                 `json:"bonus_minutes,omitempty"`
	Devices         []deviceView        `json:"devices"`
	CreatedAt       time.Time           `json:"created_at"`
}

func viewOf(b *model.Booking) bookingView {
	v := bookingView{
		ID:              b.ID,
		UserID:          b.UserID,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		BookingDate:     b.BookingDate.Format(slot.DateFormat),
		StartTime:       b.StartMinute,
		EndTime:         b.End(),
		DurationMinutes: b.DurationMinutes,
		TotalPrice:      b.TotalPrice,
		Status:          b.Status,
		BookingType:     b.BookingType,
		MembershipRate:  b.MembershipRate,
		BonusMinutes:    b.BonusMinutes,
		Devices:         make([]deviceView, 0, len(b.Devices)),
		CreatedAt:       b.CreatedAt,
	}
	for _, d := range b.Devices {
		v.Devices = append(v.Devices, deviceView{DeviceType: d.DeviceType, DeviceNumber: d.DeviceNumber, PlayerCount: d.PlayerCount, Price: d.Price})
	}
	return v
}

func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("id", "must be a positive integer")
	}
	return id, nil
}

func isAdmin(c echo.Context) bool {
	role, _ := c.Get(middleware.ContextRole).(string)
	return strings.EqualFold(role, model.RoleAdmin)
}

// Create handles POST /v1/bookings. A signed-in customer's name and phone
// fill in whatever the body leaves out. Returns 201 with the booking and
// its price breakdown.
func (h *BookingHandler) Create(c echo.Context) error {
	var body createBookingRequest
	if err := bindAndValidate(c, &body); err != nil {
		return fail(c, h.Log, err)
	}
	ctx := c.Request().Context()

	req := reservation.Request{
		CustomerName:    body.CustomerName,
		CustomerPhone:   body.CustomerPhone,
		Date:            body.Date,
		StartTime:       body.StartTime,
		DurationMinutes: body.DurationMinutes,
		BookingType:     body.BookingType,
		Devices:         body.Devices,
		PromoCodeID:     body.PromoCodeID,
		BonusMinutes:    body.BonusMinutes,
	}
	if uid, ok := middleware.UserID(c); ok {
		req.UserID = &uid
		if h.Users != nil && (strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "") {
			u, err := h.Users.GetByID(ctx, uid)
			switch {
			case err == nil:
				if strings.TrimSpace(req.CustomerName) == "" {
					req.CustomerName = u.Name
				}
				if strings.TrimSpace(req.CustomerPhone) == "" {
					req.CustomerPhone = u.Phone
				}
			case errors.Is(err, apperr.ErrNotFound):
				h.Log.WithField("user_id", uid).Warn("token subject has no user row")
			default:
				return fail(c, h.Log, apperr.Persistence("load user", err))
			}
		}
	}

	res, err := h.Bookings.Reserve(ctx, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id": res.BookingID,
		"booking":    viewOf(res.Booking),
		"quote":      res.Quote,
	})
}

// Quote handles POST /v1/bookings/quote. It prices a selection without
// checking availability or reserving anything.
func (h *BookingHandler) Quote(c echo.Context) error {
	var body quoteRequest
	if err := bindAndValidate(c, &body); err != nil {
		return fail(c, h.Log, err)
	}
	date, err := slot.ParseDate(body.Date)
	if err != nil {
		return fail(c, h.Log, err)
	}
	kind := body.BookingType
	if kind == "" {
		kind = model.BookingRegular
	}
	devices := body.Devices
	if kind == model.BookingParty {
		devices = availability.PartyDevices()
	} else if err := availability.ValidateDevices(devices); err != nil {
		return fail(c, h.Log, err)
	}

	qr := reservation.QuoteRequest{Date: date, BookingType: kind}
	if uid, ok := middleware.UserID(c); ok {
		qr.UserID = &uid
	}
	for _, d := range devices {
		qr.Lines = append(qr.Lines, pricing.Line{
			DeviceType: d.DeviceType, Unit: d.Unit, Players: d.PlayerCount, DurationMinutes: body.DurationMinutes,
		})
	}
	res, err := h.Quotes.Quote(c.Request().Context(), qr)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// authorize applies the read/cancel rule: admins see everything, a
// customer sees their own bookings, and guest bookings are reachable by
// anyone holding the id.
func authorize(c echo.Context, b *model.Booking) error {
	if isAdmin(c) || b.UserID == nil {
		return nil
	}
	if uid, ok := middleware.UserID(c); ok && uid == *b.UserID {
		return nil
	}
	return apperr.ErrForbidden
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	b, err := h.Bookings.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := authorize(c, b); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, viewOf(b))
}

// Cancel handles DELETE /v1/bookings/:id. Cancelling releases the devices
// immediately; cancelling twice is not an error.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx := c.Request().Context()

	var owner *uint64
	switch uid, ok := middleware.UserID(c); {
	case isAdmin(c):
	case ok:
		owner = &uid
	default:
		b, err := h.Bookings.Get(ctx, id)
		if err != nil {
			return fail(c, h.Log, err)
		}
		if err := authorize(c, b); err != nil {
			return fail(c, h.Log, err)
		}
	}
	if err := h.Bookings.Cancel(ctx, id, owner); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking_id": id, "status": model.StatusCancelled})
}

// HardDelete handles DELETE /v1/admin/bookings/:id.
func (h *BookingHandler) HardDelete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Bookings.HardDelete(c.Request().Context(), id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
