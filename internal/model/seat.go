package model

import (
	"fmt"
	"time"
)

// Seat type constants as stored in seats.seat_type.
const (
	SeatTypeStandard = "STANDARD"
	SeatTypeVIP      = "VIP"
	SeatTypeCouple   = "COUPLE"
)

// Seat is static catalog data describing a physical seat in a theater.
// The reservation core never mutates seats; it joins them with ledger
// entries for seat-map reads and snapshots their attributes into bookings.
type Seat struct {
	ID         uint64    // seats.id
	TheaterID  uint64    // seats.theater_id
	BranchID   uint64    // seats.branch_id
	RowLabel   string    // e.g. A, B, AA
	SeatNumber uint32    // position in the row (1-based)
	SeatType   string    // STANDARD | VIP | COUPLE
	IsActive   bool      // soft availability flag (catalog, not reservation)
	CreatedAt  time.Time // seats.created_at
	UpdatedAt  time.Time // seats.updated_at
}

// Label renders the human-readable seat position, e.g. "A7".
func (s *Seat) Label() string {
	return fmt.Sprintf("%s%d", s.RowLabel, s.SeatNumber)
}
