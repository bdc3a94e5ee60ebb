package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness of the service and its dependencies.
type HealthHandler struct {
	db  *sql.DB
	rdb *redis.Client
}

// NewHealthHandler constructs a HealthHandler.  rdb may be nil when Redis
// is unavailable; the service runs degraded, not dead.
func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Check pings the database and Redis.  A database failure is fatal (503);
// a Redis failure is reported but stays 200.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "unhealthy",
			"database": err.Error(),
		})
	}

	redisStatus := "disabled"
	if h.rdb != nil {
		redisStatus = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			redisStatus = err.Error()
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"redis":  redisStatus,
	})
}
