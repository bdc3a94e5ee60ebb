package model

import "time"

// Combo is a concession bundle (popcorn, drinks, ...) that can be attached
// to a booking.  Catalog CRUD lives outside the core; only active combos
// may be added to new bookings.
type Combo struct {
	ID         uint64    // combos.id
	Name       string    // combos.name
	PriceCents int64     // combos.price_cents
	IsActive   bool      // combos.is_active
	CreatedAt  time.Time // combos.created_at
	UpdatedAt  time.Time // combos.updated_at
}
