package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lounge-reservation/internal/handler"
	"github.com/iliyamo/lounge-reservation/internal/middleware"
	"github.com/iliyamo/lounge-reservation/internal/model"
)

// Routes bundles the handlers and the middleware instances built from
// configuration. RateLimit and Cache may be nil, in which case the routes
// are registered without them.
type Routes struct {
	JWTSecret    string
	Ready        handler.Pinger
	Availability *handler.AvailabilityHandler
	Bookings     *handler.BookingHandler
	RateLimit    echo.MiddlewareFunc
	Cache        echo.MiddlewareFunc
}

func optional(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes mounts every endpoint on e.
func RegisterRoutes(e *echo.Echo, r Routes) {
	e.GET("/healthz", handler.Health)
	if r.Ready != nil {
		e.GET("/readyz", handler.Ready(r.Ready))
	}

	// Public availability reads, cached per date.
	cached := optional(r.Cache)
	e.GET("/v1/availability", r.Availability.Occupancy, cached...)
	e.GET("/v1/slots", r.Availability.Slots, cached...)
	e.POST("/v1/availability/check", r.Availability.Check)

	// Guests and customers share the booking routes; a token, when sent,
	// must be valid and identifies the customer.
	b := e.Group("/v1/bookings", middleware.OptionalJWT(r.JWTSecret))
	b.POST("", r.Bookings.Create, optional(r.RateLimit)...)
	b.POST("/quote", r.Bookings.Quote)
	b.GET("/:id", r.Bookings.Get)
	b.DELETE("/:id", r.Bookings.Cancel)

	admin := e.Group("/v1/admin",
		middleware.JWTAuth(r.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.DELETE("/bookings/:id", r.Bookings.HardDelete)
}
