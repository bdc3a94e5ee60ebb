package model

import "time"

// Voucher kinds.  PERCENT discounts a percentage of the subtotal, FLAT
// subtracts a fixed amount; both are capped at MaxDiscountCents.
const (
	VoucherPercent = "PERCENT"
	VoucherFlat    = "FLAT"
)

// Voucher is a discount code applied at booking-creation time.  Eligibility
// checks (active window, minimum purchase, movie/branch scope) run before
// the discount is computed; the resulting amount is snapshotted into the
// booking.
type Voucher struct {
	ID               uint64    // vouchers.id
	Code             string    // vouchers.code (unique)
	Kind             string    // PERCENT | FLAT
	Value            int64     // percent (0-100) or flat amount in cents
	MaxDiscountCents int64     // upper bound on the discount
	MinPurchaseCents int64     // subtotal required before the voucher applies
	MovieID          *uint64   // restrict to a movie (nullable = any)
	BranchID         *uint64   // restrict to a branch (nullable = any)
	ValidFrom        time.Time // vouchers.valid_from
	ValidUntil       time.Time // vouchers.valid_until
	IsActive         bool      // vouchers.is_active
}
