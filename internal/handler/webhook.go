package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cineseat/ticketing/internal/booking"
	"github.com/cineseat/ticketing/internal/payment"
	"github.com/cineseat/ticketing/internal/repository"
)

// WebhookHandler receives asynchronous payment notifications from the
// gateway.  Once a payload parses, the response is 200 no matter what
// happened internally: the gateway retries non-2xx deliveries, and a
// replayed notification is already harmless because finalization is
// idempotent.
type WebhookHandler struct {
	orch *booking.Orchestrator
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(orch *booking.Orchestrator) *WebhookHandler {
	return &WebhookHandler{orch: orch}
}

type webhookPayload struct {
	OrderCode string `json:"order_code" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// HandlePayment processes one gateway notification.
func (h *WebhookHandler) HandlePayment(c echo.Context) error {
	var payload webhookPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}

	status, ok := normalizeStatus(payload.Status)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown payment status")
	}

	err := h.orch.HandleWebhook(c.Request().Context(), payload.OrderCode, status)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrBookingNotFound):
		// Unknown order codes are not retryable; acknowledge and log.
		c.Logger().Warnf("webhook for unknown order %s", payload.OrderCode)
	default:
		c.Logger().Errorf("webhook order=%s: %v", payload.OrderCode, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// normalizeStatus maps the gateway's status vocabulary onto the internal
// one before the orchestrator sees it.
func normalizeStatus(raw string) (string, bool) {
	switch strings.ToUpper(raw) {
	case "PAID", "SUCCEEDED", "COMPLETED", "CHECKOUT.SESSION.COMPLETED":
		return payment.StatusPaid, true
	case "FAILED", "PAYMENT_FAILED":
		return payment.StatusFailed, true
	case "CANCELLED", "CANCELED", "EXPIRED", "CHECKOUT.SESSION.EXPIRED":
		return payment.StatusCancelled, true
	}
	return "", false
}
