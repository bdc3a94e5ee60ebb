package model

import "time"

// SeatStatus enumerates the lifecycle states of a ledger entry.  Values are
// stored verbatim in the seat_ledger.status column.
type SeatStatus string

const (
	SeatAvailable   SeatStatus = "AVAILABLE"   // free for anyone to take
	SeatSelecting   SeatStatus = "SELECTING"   // soft hold while a client browses
	SeatReserved    SeatStatus = "RESERVED"    // firm hold pending payment
	SeatBooked      SeatStatus = "BOOKED"      // paid; terminal unless cancelled
	SeatBlocked     SeatStatus = "BLOCKED"     // blocked by staff
	SeatMaintenance SeatStatus = "MAINTENANCE" // physically unusable
)

// LedgerEntry is the per-(showtime, seat) record of current seat ownership.
// It is the single shared mutable resource of the reservation engine; all
// transitions go through conditional updates keyed on the current status,
// never through blind overwrites.
//
// Invariants:
//   - Holder and LeaseExpiresAt are set iff Status is SELECTING or RESERVED.
//   - BookingID is set iff Status is BOOKED.
//   - PriceCents is snapshotted from the showtime price table when the
//     entry is created and never changes afterwards.
type LedgerEntry struct {
	ShowtimeID     uint64     // seat_ledger.showtime_id
	SeatID         uint64     // seat_ledger.seat_id
	Status         SeatStatus // seat_ledger.status
	Holder         *string    // seat_ledger.holder (nullable)
	HeldAt         *time.Time // seat_ledger.held_at (nullable)
	LeaseExpiresAt *time.Time // seat_ledger.lease_expires_at (nullable)
	BookingID      *uint64    // seat_ledger.booking_id (nullable)
	PriceCents     int64      // seat_ledger.price_cents
	CreatedAt      time.Time  // seat_ledger.created_at
	UpdatedAt      time.Time  // seat_ledger.updated_at
}

// HeldBy reports whether the entry currently carries a lease owned by the
// given holder.
func (e *LedgerEntry) HeldBy(holder string) bool {
	return e.Holder != nil && *e.Holder == holder &&
		(e.Status == SeatSelecting || e.Status == SeatReserved)
}

// SeatView is the read shape used to render a seat map: static seat
// metadata joined with the live ledger status.
type SeatView struct {
	SeatID         uint64     `json:"seat_id"`
	RowLabel       string     `json:"row"`
	SeatNumber     uint32     `json:"number"`
	SeatType       string     `json:"type"`
	Status         SeatStatus `json:"status"`
	PriceCents     int64      `json:"price_cents"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
}
