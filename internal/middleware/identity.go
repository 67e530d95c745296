package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id stored by JWTAuth or
// OptionalJWT. JSON numbers decode as float64 and some issuers send the
// subject as a string, so every numeric shape is accepted.
func UserID(c echo.Context) (uint64, bool) {
	switch t := c.Get(ContextUserID).(type) {
	case uint64:
		return t, true
	case int:
		return uint64(t), t > 0
	case int64:
		return uint64(t), t > 0
	case float64:
		return uint64(t), t > 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// userKey is the user component of rate limit keys.
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "guest"
}
