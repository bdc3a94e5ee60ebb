package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/middleware"
	"github.com/cineseat/ticketing/internal/model"
	"github.com/cineseat/ticketing/internal/pricing"
	"github.com/cineseat/ticketing/internal/repository"
	"github.com/cineseat/ticketing/internal/reservation"
)

// SeatHandler serves the seat map and the hold lifecycle of a showtime.
type SeatHandler struct {
	ledger    *repository.LedgerRepo
	seats     *repository.SeatRepo
	showtimes *repository.ShowtimeRepo
	coord     *reservation.Coordinator
}

// NewSeatHandler constructs a SeatHandler.
func NewSeatHandler(ledger *repository.LedgerRepo, seats *repository.SeatRepo, showtimes *repository.ShowtimeRepo, coord *reservation.Coordinator) *SeatHandler {
	return &SeatHandler{ledger: ledger, seats: seats, showtimes: showtimes, coord: coord}
}

type seatBatchRequest struct {
	SeatIDs []uint64 `json:"seat_ids" validate:"required,min=1"`
}

// GetSeatMap returns every seat of the showtime with its live status.
// Ledger entries are created lazily on the first read: INSERT IGNORE keeps
// the initialization idempotent under concurrent first viewers.
func (h *SeatHandler) GetSeatMap(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	showtime, err := h.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return fail(c, err)
	}

	views, err := h.ledger.SeatMap(ctx, showtimeID)
	if err != nil {
		return fail(c, err)
	}
	if len(views) == 0 {
		if views, err = h.initLedger(c, showtime); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id": showtimeID,
		"seats":       views,
	})
}

func (h *SeatHandler) initLedger(c echo.Context, showtime *model.Showtime) ([]model.SeatView, error) {
	ctx := c.Request().Context()
	seats, err := h.seats.ListActiveByTheater(ctx, showtime.TheaterID)
	if err != nil {
		return nil, err
	}
	err = h.ledger.InitForShowtime(ctx, showtime.ID, seats, func(seatType string) int64 {
		return pricing.PriceFor(seatType, showtime.Prices)
	})
	if err != nil {
		return nil, err
	}
	return h.ledger.SeatMap(ctx, showtime.ID)
}

// GetSummary returns per-status seat counts for capacity display.
func (h *SeatHandler) GetSummary(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.showtimes.GetByID(ctx, showtimeID); err != nil {
		return fail(c, err)
	}
	counts, err := h.ledger.CountByStatus(ctx, showtimeID)
	if err != nil {
		return fail(c, err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id": showtimeID,
		"total":       total,
		"counts":      counts,
	})
}

// Select places soft holds on a batch of seats for the caller.
func (h *SeatHandler) Select(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req seatBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	expiresAt, err := h.coord.Select(c.Request().Context(), showtimeID, req.SeatIDs, actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":           string(model.SeatSelecting),
		"seat_ids":         req.SeatIDs,
		"lease_expires_at": expiresAt,
	})
}

// Reserve upgrades the batch into firm payment holds.
func (h *SeatHandler) Reserve(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req seatBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	expiresAt, err := h.coord.Reserve(c.Request().Context(), showtimeID, req.SeatIDs, actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":           string(model.SeatReserved),
		"seat_ids":         req.SeatIDs,
		"lease_expires_at": expiresAt,
	})
}

// ReleaseHold gives the caller's holds back.  Releasing seats the caller no
// longer holds is a no-op, so a double-click costs nothing.
func (h *SeatHandler) ReleaseHold(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req seatBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	released, err := h.coord.Release(c.Request().Context(), showtimeID, req.SeatIDs, actor.ID, "released by holder")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"released": released,
	})
}
