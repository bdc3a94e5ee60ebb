// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking is finalized as paid.
// Downstream consumers (ticket email, QR rendering, analytics) get enough
// information to act without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID  uint64   `json:"booking_id"`
	OrderCode  string   `json:"order_code"`
	ShowtimeID uint64   `json:"showtime_id"`
	CustomerID string   `json:"customer_id"`
	PayerName  string   `json:"payer_name"`
	PayerEmail string   `json:"payer_email"`
	SeatLabels []string `json:"seats"`
	TotalCents int64    `json:"total_cents"`
	ConfirmedAt string  `json:"confirmed_at"`
}
