package model

import "time"

// PriceTable holds the per-seat-type prices of a showtime.  Ledger entries
// snapshot their price from this table at initialization time, so editing a
// showtime's prices never changes seats that are already on the ledger.
type PriceTable struct {
	StandardCents int64 // price for STANDARD seats
	VIPCents      int64 // price for VIP seats
	CoupleCents   int64 // price for COUPLE seats
}

// Showtime represents a scheduled screening.  Movie, theater and branch are
// catalog references owned by external collaborators; the reservation core
// only reads them.  A showtime becomes immutable once any of its ledger
// entries has left AVAILABLE.
type Showtime struct {
	ID        uint64     // showtimes.id
	MovieID   uint64     // showtimes.movie_id
	TheaterID uint64     // showtimes.theater_id
	BranchID  uint64     // showtimes.branch_id
	StartsAt  time.Time  // showtimes.starts_at
	EndsAt    time.Time  // showtimes.ends_at
	Prices    PriceTable // per seat type price columns
	Status    string     // SCHEDULED | CANCELLED | FINISHED
	CreatedAt time.Time  // showtimes.created_at
	UpdatedAt time.Time  // showtimes.updated_at
}
