package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/foodcart-booking/internal/handler"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Health       echo.HandlerFunc
	Availability *handler.AvailabilityHandler
	Bookings     *handler.BookingHandler
	Coupons      *handler.CouponHandler
	Payments     *handler.PaymentHandler
}

// RegisterRoutes mounts the API on e.  limit wraps the write endpoints; pass
// nil to leave them unlimited.
func RegisterRoutes(e *echo.Echo, h Handlers, limit echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)

	var writes []echo.MiddlewareFunc
	if limit != nil {
		writes = append(writes, limit)
	}

	v1 := e.Group("/v1")

	// Calendar reads are advisory and unlimited.
	v1.GET("/carts/:id/availability", h.Availability.Day)
	v1.GET("/carts/:id/availability/range", h.Availability.Range)
	v1.POST("/carts/:id/availability/check", h.Availability.Check)

	v1.POST("/bookings", h.Bookings.Create, writes...)
	v1.GET("/bookings/:id", h.Bookings.Get)
	v1.POST("/bookings/:id/cancel", h.Bookings.Cancel, writes...)
	v1.POST("/bookings/:id/complete", h.Bookings.Complete, writes...)

	v1.POST("/coupons/validate", h.Coupons.Validate, writes...)
	v1.POST("/payments/reconcile", h.Payments.Reconcile, writes...)
}
