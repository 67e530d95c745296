package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
)

// fail writes err using the shared error body {"error", "code"} plus any
// structured details the error carries. Unclassified errors are logged and
// hidden behind a generic message.
func fail(c echo.Context, log logrus.FieldLogger, err error) error {
	status := apperr.HTTPStatus(err)
	body := echo.Map{"error": err.Error(), "code": apperr.Code(err)}

	var (
		ve *apperr.ValidationError
		de *apperr.DeviceUnavailableError
		ce *apperr.CapacityExceededError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Field != "" {
			body["field"] = ve.Field
		}
	case errors.As(err, &de):
		body["device_type"] = de.Device
		if de.Unit > 0 {
			body["device_number"] = de.Unit
		}
	case errors.As(err, &ce):
		body["existing_players"] = ce.Existing
		body["requested_players"] = ce.Requested
		body["max_players"] = ce.Limit
	}
	if apperr.Retryable(err) {
		body["retryable"] = true
	}
	if status >= http.StatusInternalServerError {
		log.WithFields(logrus.Fields{"path": c.Path(), "code": body["code"]}).WithError(err).Error("request failed")
		if status == http.StatusServiceUnavailable {
			body["error"] = "temporarily unavailable, please try again"
		} else {
			body["error"] = "internal server error"
		}
	}
	return c.JSON(status, body)
}

// bindAndValidate binds the request body into dst and runs the registered
// validator. Binding errors become validation errors.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Invalid("", "invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dst)
}
