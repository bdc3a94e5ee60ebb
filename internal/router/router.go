// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/cineseat/ticketing/internal/config"
	"github.com/cineseat/ticketing/internal/handler"
	"github.com/cineseat/ticketing/internal/middleware"
)

// Handlers bundles everything RegisterRoutes needs.
type Handlers struct {
	Health   *handler.HealthHandler
	Seats    *handler.SeatHandler
	Bookings *handler.BookingHandler
	Webhook  *handler.WebhookHandler
	Events   *handler.EventsHandler
}

// RegisterRoutes mounts all routes.  Every /v1 route runs behind the
// identity middleware so a holder id always exists; the contention
// endpoints (select/reserve) additionally sit behind the rate limiter.
func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	e.GET("/health", h.Health.Check)

	// The gateway calls the webhook directly; no holder identity involved.
	e.POST("/v1/payments/webhook", h.Webhook.HandlePayment)

	v1 := e.Group("/v1", middleware.Identity(cfg.JWTSecret))
	limited := middleware.NewTokenBucket(rlCfg, rdb)

	v1.GET("/showtimes/:id/seats", h.Seats.GetSeatMap)
	v1.GET("/showtimes/:id/seats/summary", h.Seats.GetSummary)
	v1.GET("/showtimes/:id/events", h.Events.Stream)
	v1.POST("/showtimes/:id/seats/select", h.Seats.Select, limited)
	v1.POST("/showtimes/:id/seats/reserve", h.Seats.Reserve, limited)
	v1.DELETE("/showtimes/:id/seats/hold", h.Seats.ReleaseHold)

	v1.POST("/bookings", h.Bookings.Create)
	v1.GET("/bookings/:id", h.Bookings.Get)
	v1.POST("/bookings/:id/checkout", h.Bookings.Checkout)
	v1.POST("/bookings/:id/confirm", h.Bookings.Confirm)
	v1.DELETE("/bookings/:id", h.Bookings.Cancel)
}
