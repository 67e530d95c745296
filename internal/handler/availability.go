package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
	"github.com/iliyamo/lounge-reservation/internal/availability"
	"github.com/iliyamo/lounge-reservation/internal/capacity"
	"github.com/iliyamo/lounge-reservation/internal/model"
	"github.com/iliyamo/lounge-reservation/internal/slot"
)

// AvailabilityReader is the read side of availability.Checker.
type AvailabilityReader interface {
	At(ctx context.Context, date time.Time, t slot.Clock) (*capacity.Occupancy, error)
	Range(ctx context.Context, date time.Time, start slot.Clock, duration int) (*capacity.Occupancy, error)
	Check(ctx context.Context, date time.Time, start slot.Clock, duration int, kind model.BookingType, devices []availability.DeviceRequest) (*availability.Result, error)
	DayGrid(ctx context.Context, date time.Time) ([]availability.SlotStatus, error)
}

// AvailabilityHandler serves the public availability endpoints. None of
// them require authentication and all are safe to cache per date.
type AvailabilityHandler struct {
	Checker AvailabilityReader
	Log     logrus.FieldLogger
}

// NewAvailabilityHandler wires an AvailabilityHandler.
func NewAvailabilityHandler(checker AvailabilityReader, log logrus.FieldLogger) *AvailabilityHandler {
	return &AvailabilityHandler{Checker: checker, Log: log}
}

type occupancyResponse struct {
	Date                  string             `json:"date"`
	Time                  slot.Clock         `json:"time"`
	DurationMinutes       int                `json:"duration_minutes,omitempty"`
	AvailablePS5Units     []int              `json:"available_ps5_units"`
	AvailableDriving      bool               `json:"available_driving"`
	TotalPS5PlayersBooked int                `json:"total_ps5_players_booked"`
	RemainingPS5Players   int                `json:"remaining_ps5_players"`
	Occupancy             capacity.Occupancy `json:"occupancy"`
}

// Occupancy handles GET /v1/availability?date=YYYY-MM-DD&time=HH:MM. With
// an optional duration it reports the worst case across the whole range,
// otherwise the occupancy at that instant.
func (h *AvailabilityHandler) Occupancy(c echo.Context) error {
	date, err := slot.ParseDate(c.QueryParam("date"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	at, err := slot.ParseClock(c.QueryParam("time"))
	if err != nil {
		return fail(c, h.Log, apperr.Invalid("time", "must be formatted as HH:MM"))
	}
	ctx := c.Request().Context()

	resp := occupancyResponse{Date: date.Format(slot.DateFormat), Time: at}
	var occ *capacity.Occupancy
	if raw := c.QueryParam("duration"); raw != "" {
		d, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return fail(c, h.Log, apperr.Invalid("duration", "must be a number of minutes"))
		}
		if err := slot.ValidateRange(at, d); err != nil {
			return fail(c, h.Log, err)
		}
		resp.DurationMinutes = d
		occ, err = h.Checker.Range(ctx, date, at, d)
	} else {
		occ, err = h.Checker.At(ctx, date, at)
	}
	if err != nil {
		return fail(c, h.Log, err)
	}
	resp.Occupancy = *occ
	resp.AvailablePS5Units = occ.AvailablePS5
	resp.AvailableDriving = occ.AvailableDriving
	resp.TotalPS5PlayersBooked = occ.TotalPS5Players
	resp.RemainingPS5Players = occ.RemainingPS5Players()
	return c.JSON(http.StatusOK, resp)
}

// Slots handles GET /v1/slots?date=YYYY-MM-DD and returns the status of
// every public start time of the day.
func (h *AvailabilityHandler) Slots(c echo.Context) error {
	date, err := slot.ParseDate(c.QueryParam("date"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	grid, err := h.Checker.DayGrid(c.Request().Context(), date)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date.Format(slot.DateFormat), "slots": grid})
}

type checkRequest struct {
	Date            string                       `json:"date" validate:"required"`
	StartTime       string                       `json:"start_time" validate:"required"`
	DurationMinutes int                          `json:"duration_minutes" validate:"required,oneof=30 60 90 120"`
	BookingType     model.BookingType            `json:"booking_type" validate:"omitempty,oneof=regular party"`
	Devices         []availability.DeviceRequest `json:"devices" validate:"omitempty,dive"`
}

// Check handles POST /v1/availability/check. It answers whether the given
// devices could be booked right now; conflicts come back as 409 with the
// same codes a reservation would produce.
func (h *AvailabilityHandler) Check(c echo.Context) error {
	var req checkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return fail(c, h.Log, err)
	}
	date, err := slot.ParseDate(req.Date)
	if err != nil {
		return fail(c, h.Log, err)
	}
	start, err := slot.ParseClock(req.StartTime)
	if err != nil {
		return fail(c, h.Log, apperr.Invalid("start_time", "must be formatted as HH:MM"))
	}
	kind := req.BookingType
	if kind == "" {
		kind = model.BookingRegular
	}
	res, err := h.Checker.Check(c.Request().Context(), date, start, req.DurationMinutes, kind, req.Devices)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
