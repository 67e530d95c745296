package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by the JWT middlewares.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// parseBearer validates an HS256 bearer token and returns its claims. ok is
// false when no Authorization header was sent.
func parseBearer(c echo.Context, secret string) (claims jwt.MapClaims, ok bool, err error) {
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return nil, false, nil
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, true, jwt.ErrTokenMalformed
	}
	raw := strings.TrimPrefix(auth, "Bearer ")
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, true, jwt.ErrTokenInvalidClaims
	}
	claims, isMap := tok.Claims.(jwt.MapClaims)
	if !isMap {
		return nil, true, jwt.ErrTokenInvalidClaims
	}
	return claims, true, nil
}

// JWTAuth requires a valid Bearer access token and stores its subject and
// role claims under "user_id" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, present, err := parseBearer(c, secret)
			if !present {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
			}
			c.Set(ContextUserID, claims["sub"])
			c.Set(ContextRole, claims["role"])
			return next(c)
		}
	}
}

// OptionalJWT is JWTAuth for routes guests may also call: requests without
// an Authorization header pass through anonymously, but a header that is
// present must carry a valid token.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, present, err := parseBearer(c, secret)
			if !present {
				return next(c)
			}
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
			}
			c.Set(ContextUserID, claims["sub"])
			c.Set(ContextRole, claims["role"])
			return next(c)
		}
	}
}
