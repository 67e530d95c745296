// Package apperr defines the error taxonomy shared by the availability,
// pricing and reservation layers. Handlers translate these values into HTTP
// responses through HTTPStatus and Code; everything else wraps them with
// fmt.Errorf and inspects them with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a booking or membership does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller tries to act on a booking
	// owned by someone else.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict signals that the database gave up waiting for a row lock
	// (lock wait timeout or deadlock). The caller may retry the whole request.
	ErrConflict = errors.New("slot was just booked by someone else, please try again")

	// ErrMembershipInsufficient is informational: a membership exists but does
	// not have enough hours left. It never fails a booking.
	ErrMembershipInsufficient = errors.New("membership has insufficient hours")
)

// ValidationError reports malformed or out-of-policy input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid is a shorthand constructor for ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DeviceUnavailableError reports a requested device that is already booked
// somewhere inside the requested range.
type DeviceUnavailableError struct {
	Device string // "ps5" or "driving_sim"
	Unit   int    // PS5 unit number, 0 for the simulator
	Start  string // HH:MM
	End    string // HH:MM
}

func (e *DeviceUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available for the selected time slot (%s-%s)", e.DeviceLabel(), e.Start, e.End)
}

// DeviceLabel is the human readable device name used in messages.
func (e *DeviceUnavailableError) DeviceLabel() string {
	if e.Device == "ps5" {
		return fmt.Sprintf("PS5 Unit %d", e.Unit)
	}
	return "Driving Simulator"
}

// CapacityExceededError reports that the aggregate PS5 player cap would be
// exceeded even though individual units may be free.
type CapacityExceededError struct {
	Existing  int
	Requested int
	Limit     int
	Start     string
	End       string
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("PS5 player capacity exceeded for %s-%s: %d already booked, %d requested, limit %d",
		e.Start, e.End, e.Existing, e.Requested, e.Limit)
}

// ClosedError reports that the shop is closed for (part of) the range.
type ClosedError struct {
	Date   string
	Reason string
}

func (e *ClosedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("the lounge is closed on %s for the selected time", e.Date)
	}
	return fmt.Sprintf("the lounge is closed on %s for the selected time: %s", e.Date, e.Reason)
}

// PersistenceError wraps an infrastructure failure. It is always retryable
// because the transaction that produced it was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err unless it is nil or already classified as a
// conflict, in which case the conflict is kept visible to errors.Is.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &PersistenceError{Op: op, Err: err}
}

// Retryable reports whether the caller can safely resubmit the request.
func Retryable(err error) bool {
	var pe *PersistenceError
	return errors.Is(err, ErrConflict) || errors.As(err, &pe)
}

// HTTPStatus maps an error to the status code handlers should answer with.
func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		de *DeviceUnavailableError
		ce *CapacityExceededError
		cl *ClosedError
		pe *PersistenceError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &de), errors.As(err, &ce), errors.As(err, &cl), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &pe):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Code returns a stable machine readable identifier for err.
func Code(err error) string {
	var (
		ve *ValidationError
		de *DeviceUnavailableError
		ce *CapacityExceededError
		cl *ClosedError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &de):
		return "device_unavailable"
	case errors.As(err, &ce):
		return "capacity_exceeded"
	case errors.As(err, &cl):
		return "shop_closed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.As(err, &pe):
		return "persistence_error"
	}
	return "internal_error"
}
