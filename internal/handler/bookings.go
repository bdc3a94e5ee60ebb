package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/booking"
	"github.com/cineseat/ticketing/internal/middleware"
	"github.com/cineseat/ticketing/internal/model"
)

// BookingHandler serves the booking lifecycle: create, checkout, confirm,
// cancel and fetch.
type BookingHandler struct {
	orch *booking.Orchestrator
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(orch *booking.Orchestrator) *BookingHandler {
	return &BookingHandler{orch: orch}
}

type comboSelectionRequest struct {
	ComboID  uint64 `json:"combo_id" validate:"required"`
	Quantity uint32 `json:"quantity" validate:"required,min=1"`
}

type createBookingRequest struct {
	ShowtimeID  uint64                  `json:"showtime_id" validate:"required"`
	SeatIDs     []uint64                `json:"seat_ids" validate:"required,min=1"`
	Combos      []comboSelectionRequest `json:"combos" validate:"dive"`
	VoucherCode string                  `json:"voucher_code"`
	PayerName   string                  `json:"payer_name" validate:"required"`
	PayerEmail  string                  `json:"payer_email" validate:"required,email"`
}

type confirmBookingRequest struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
}

// Create opens a booking over seats the caller has reserved.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	in := booking.CreateInput{
		ShowtimeID:  req.ShowtimeID,
		SeatIDs:     req.SeatIDs,
		VoucherCode: req.VoucherCode,
		PayerName:   req.PayerName,
		PayerEmail:  req.PayerEmail,
	}
	for _, sel := range req.Combos {
		in.Combos = append(in.Combos, booking.ComboSelection{ComboID: sel.ComboID, Quantity: sel.Quantity})
	}

	b, err := h.orch.Create(c.Request().Context(), in, actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, bookingResponse(b))
}

// Checkout opens a payment-gateway session for a pending booking.
func (h *BookingHandler) Checkout(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	url, err := h.orch.StartPayment(c.Request().Context(), bookingID, actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"checkout_url": url})
}

// Confirm finalizes a booking synchronously (cash at the counter, or the
// client reporting gateway success).  Method defaults to CASH.
func (h *BookingHandler) Confirm(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req confirmBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Method == "" {
		req.Method = "CASH"
	}
	actor, _ := middleware.GetActor(c)

	b, err := h.orch.Confirm(c.Request().Context(), bookingID, actor, req.Method, req.TransactionID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bookingResponse(b))
}

// Cancel abandons a pending booking and releases its seats.
func (h *BookingHandler) Cancel(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	if err := h.orch.Cancel(c.Request().Context(), bookingID, actor); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": model.BookingCancelled})
}

// Get returns one booking visible to the caller.
func (h *BookingHandler) Get(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	actor, _ := middleware.GetActor(c)

	b, err := h.orch.Get(c.Request().Context(), bookingID, actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bookingResponse(b))
}

func bookingResponse(b *model.Booking) echo.Map {
	seats := make([]echo.Map, 0, len(b.Seats))
	for _, s := range b.Seats {
		seats = append(seats, echo.Map{
			"seat_id":     s.SeatID,
			"row":         s.RowLabel,
			"number":      s.SeatNumber,
			"type":        s.SeatType,
			"price_cents": s.PriceCents,
		})
	}
	combos := make([]echo.Map, 0, len(b.Combos))
	for _, cl := range b.Combos {
		combos = append(combos, echo.Map{
			"combo_id":         cl.ComboID,
			"name":             cl.Name,
			"unit_price_cents": cl.UnitPriceCents,
			"quantity":         cl.Quantity,
		})
	}
	return echo.Map{
		"id":                b.ID,
		"order_code":        b.OrderCode,
		"showtime_id":       b.ShowtimeID,
		"payer_name":        b.PayerName,
		"payer_email":       b.PayerEmail,
		"seats":             seats,
		"combos":            combos,
		"seat_total_cents":  b.SeatTotalCents,
		"combo_total_cents": b.ComboTotalCents,
		"discount_cents":    b.DiscountCents,
		"total_cents":       b.TotalCents,
		"payment_status":    b.PaymentStatus,
		"booking_status":    b.BookingStatus,
		"created_at":        b.CreatedAt,
	}
}
