package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/lounge-reservation/internal/apperr"
)

// RequestValidator adapts go-playground/validator to echo.Validator so that
// c.Validate reports the first failing field as an *apperr.ValidationError
// named after its JSON key.
type RequestValidator struct {
	v *validator.Validate
}

// NewValidator returns a validator that names fields by their json tag.
func NewValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return apperr.Invalid("", "invalid request body")
	}
	fe := fields[0]
	return apperr.Invalid(fieldPath(fe.Namespace()), "%s", describe(fe))
}

// fieldPath drops the struct name validator puts in front of a namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "datetime":
		return "must be formatted as " + fe.Param()
	}
	return "failed the " + fe.Tag() + " check"
}
