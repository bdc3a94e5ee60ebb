// Package handler exposes the reservation engine over HTTP.  Handlers
// translate requests into coordinator and orchestrator calls and map typed
// failures onto status codes; they contain no ledger logic of their own.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/booking"
	"github.com/cineseat/ticketing/internal/pricing"
	"github.com/cineseat/ticketing/internal/repository"
	"github.com/cineseat/ticketing/internal/reservation"
)

// pathID parses the :id (or named) path parameter as an unsigned id.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// fail maps domain errors onto HTTP responses.  Conflict-style errors carry
// the losing seat ids so clients can re-render just those seats.
func fail(c echo.Context, err error) error {
	var conflict *reservation.ConflictError
	if errors.As(err, &conflict) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    "seats no longer available",
			"seat_ids": conflict.SeatIDs,
		})
	}
	var unavailable *booking.SeatsUnavailableError
	if errors.As(err, &unavailable) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    "seats no longer available",
			"seat_ids": unavailable.SeatIDs,
		})
	}

	switch {
	case errors.Is(err, repository.ErrShowtimeNotFound),
		errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrVoucherNotFound),
		errors.Is(err, repository.ErrComboNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not allowed"})
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, booking.ErrAlreadyFinalized),
		errors.Is(err, booking.ErrAlreadyCancelled):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, reservation.ErrNoSeats),
		errors.Is(err, reservation.ErrTooManySeats),
		errors.Is(err, booking.ErrComboInactive),
		errors.Is(err, pricing.ErrVoucherInactive),
		errors.Is(err, pricing.ErrVoucherExpired),
		errors.Is(err, pricing.ErrVoucherMinPurchase),
		errors.Is(err, pricing.ErrVoucherWrongMovie),
		errors.Is(err, pricing.ErrVoucherWrongBranch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return err
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
