package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/middleware"
	"github.com/cineseat/ticketing/internal/notifier"
	"github.com/cineseat/ticketing/internal/repository"
	"github.com/cineseat/ticketing/internal/reservation"
)

// EventsHandler streams ledger-change events for one showtime over
// server-sent events.  The stream is advisory: clients that miss events
// re-sync from the seat map.
type EventsHandler struct {
	events    *notifier.Notifier
	coord     *reservation.Coordinator
	showtimes *repository.ShowtimeRepo
}

// NewEventsHandler constructs an EventsHandler.
func NewEventsHandler(events *notifier.Notifier, coord *reservation.Coordinator, showtimes *repository.ShowtimeRepo) *EventsHandler {
	return &EventsHandler{events: events, coord: coord, showtimes: showtimes}
}

// Stream subscribes the caller to a showtime's event channel.  When the
// connection drops, the caller's SELECTING holds on the showtime are
// released immediately; RESERVED holds survive so an in-flight payment is
// not punished for a flaky connection.
func (h *EventsHandler) Stream(c echo.Context) error {
	showtimeID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.showtimes.GetByID(c.Request().Context(), showtimeID); err != nil {
		return fail(c, err)
	}
	actor, _ := middleware.GetActor(c)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming unsupported")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	ch, cancel := h.events.Subscribe(showtimeID)
	defer cancel()

	// The request context dies with the connection; the release must not.
	defer func() {
		ctx, cancelRelease := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelRelease()
		if err := h.coord.ReleaseSelecting(ctx, showtimeID, actor.ID); err != nil {
			c.Logger().Errorf("release on disconnect showtime=%d: %v", showtimeID, err)
		}
	}()

	fmt.Fprintf(res, "event: connected\ndata: {\"showtime_id\": %d}\n\n", showtimeID)
	flusher.Flush()

	// Periodic comments keep intermediaries from closing an idle stream.
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepalive.C:
			fmt.Fprint(res, ": keepalive\n\n")
			flusher.Flush()
		case ev, open := <-ch:
			if !open {
				return nil
			}
			if err := writeEvent(res, ev); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeEvent(res *echo.Response, ev notifier.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, body)
	return err
}
