package model

import "time"

// Payment status values stored in bookings.payment_status.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
)

// Booking status values stored in bookings.booking_status.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
	BookingCompleted = "COMPLETED"
)

// Booking is the immutable record of a purchase attempt.  It is created
// once in PENDING/PENDING and moves to exactly one terminal pair:
// COMPLETED/CONFIRMED on payment success or FAILED/CANCELLED otherwise.
// Bookings are never deleted, only cancelled.
//
// Seats, combo lines and the voucher discount are snapshotted at creation
// time so later catalog edits cannot retroactively change a historical
// booking.
type Booking struct {
	ID              uint64        // bookings.id
	OrderCode       string        // opaque code handed to the payment gateway
	ShowtimeID      uint64        // bookings.showtime_id
	CustomerID      string        // holder id of the buyer ("user:.." or "guest:..")
	PayerName       string        // bookings.payer_name
	PayerEmail      string        // bookings.payer_email
	Seats           []BookingSeat // snapshot rows, ordered as requested
	Combos          []BookingCombo
	VoucherID       *uint64 // bookings.voucher_id (nullable)
	SeatTotalCents  int64
	ComboTotalCents int64
	DiscountCents   int64
	TotalCents      int64
	PaymentStatus   string  // PENDING | COMPLETED | FAILED
	BookingStatus   string  // PENDING | CONFIRMED | CANCELLED | COMPLETED
	PaymentMethod   *string // e.g. CASH, GATEWAY (nullable until finalized)
	TransactionID   *string // gateway transaction reference (nullable)
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SeatIDs returns the ledger seat ids covered by the booking, in snapshot
// order.
func (b *Booking) SeatIDs() []uint64 {
	ids := make([]uint64, len(b.Seats))
	for i, s := range b.Seats {
		ids[i] = s.SeatID
	}
	return ids
}

// BookingSeat captures a seat's row, number, type and price at booking time.
// It intentionally does not reference live seat attributes.
type BookingSeat struct {
	ID         uint64 // booking_seats.id
	BookingID  uint64 // booking_seats.booking_id
	SeatID     uint64 // booking_seats.seat_id
	RowLabel   string
	SeatNumber uint32
	SeatType   string
	PriceCents int64
}

// BookingCombo is a combo line item priced at booking time.
type BookingCombo struct {
	ID             uint64 // booking_combos.id
	BookingID      uint64
	ComboID        uint64
	Name           string
	UnitPriceCents int64
	Quantity       uint32
}
