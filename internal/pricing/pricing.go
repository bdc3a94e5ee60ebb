// Package pricing is the single home of seat, combo and voucher arithmetic.
// Every caller that needs a seat price goes through PriceFor, so the price
// table is interpreted in exactly one place.
package pricing

import (
	"errors"
	"time"

	"github.com/cineseat/ticketing/internal/model"
)

// Voucher rejection reasons, surfaced to the client verbatim.
var (
	ErrVoucherInactive    = errors.New("voucher is not active")
	ErrVoucherExpired     = errors.New("voucher is outside its validity window")
	ErrVoucherMinPurchase = errors.New("subtotal below voucher minimum purchase")
	ErrVoucherWrongMovie  = errors.New("voucher not valid for this movie")
	ErrVoucherWrongBranch = errors.New("voucher not valid for this branch")
)

// PriceFor resolves the price of a seat type against a showtime's price
// table.  Unknown types fall back to the standard price rather than
// failing: a new seat type in the catalog must never block selling seats.
func PriceFor(seatType string, t model.PriceTable) int64 {
	switch seatType {
	case model.SeatTypeVIP:
		return t.VIPCents
	case model.SeatTypeCouple:
		return t.CoupleCents
	default:
		return t.StandardCents
	}
}

// ComboLine is one combo selection with its snapshot unit price.
type ComboLine struct {
	UnitPriceCents int64
	Quantity       uint32
}

// Quote is the price breakdown persisted onto a booking.
type Quote struct {
	SeatTotalCents  int64
	ComboTotalCents int64
	DiscountCents   int64
	TotalCents      int64
}

// ComputeQuote totals seat prices and combo lines, applies the voucher
// discount to the subtotal and floors the result at zero.  voucher may be
// nil.  The caller validates voucher eligibility first; ComputeQuote only
// does arithmetic.
func ComputeQuote(seatPrices []int64, combos []ComboLine, voucher *model.Voucher) Quote {
	var q Quote
	for _, p := range seatPrices {
		q.SeatTotalCents += p
	}
	for _, cl := range combos {
		q.ComboTotalCents += cl.UnitPriceCents * int64(cl.Quantity)
	}
	subtotal := q.SeatTotalCents + q.ComboTotalCents
	if voucher != nil {
		q.DiscountCents = Discount(voucher, subtotal)
	}
	q.TotalCents = subtotal - q.DiscountCents
	if q.TotalCents < 0 {
		q.TotalCents = 0
	}
	return q
}

// Discount computes the voucher's discount for a subtotal: a percentage of
// the subtotal or a flat amount, either way capped at MaxDiscountCents.
func Discount(v *model.Voucher, subtotalCents int64) int64 {
	var d int64
	switch v.Kind {
	case model.VoucherPercent:
		d = subtotalCents * v.Value / 100
	case model.VoucherFlat:
		d = v.Value
	}
	if v.MaxDiscountCents > 0 && d > v.MaxDiscountCents {
		d = v.MaxDiscountCents
	}
	if d > subtotalCents {
		d = subtotalCents
	}
	return d
}

// ValidateVoucher checks eligibility of a voucher against the purchase:
// active flag, validity window, minimum purchase, and movie/branch scope.
func ValidateVoucher(v *model.Voucher, subtotalCents int64, movieID, branchID uint64, now time.Time) error {
	if !v.IsActive {
		return ErrVoucherInactive
	}
	if now.Before(v.ValidFrom) || now.After(v.ValidUntil) {
		return ErrVoucherExpired
	}
	if subtotalCents < v.MinPurchaseCents {
		return ErrVoucherMinPurchase
	}
	if v.MovieID != nil && *v.MovieID != movieID {
		return ErrVoucherWrongMovie
	}
	if v.BranchID != nil && *v.BranchID != branchID {
		return ErrVoucherWrongBranch
	}
	return nil
}
