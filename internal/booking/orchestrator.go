// Package booking drives a booking from creation through finalization.
// The orchestrator never writes ledger fields itself: it verifies ownership
// through ledger reads and delegates every seat transition to the
// reservation coordinator.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cineseat/ticketing/internal/model"
	"github.com/cineseat/ticketing/internal/payment"
	"github.com/cineseat/ticketing/internal/pricing"
	"github.com/cineseat/ticketing/internal/repository"
)

// Store is the booking persistence the orchestrator needs.  TryComplete
// and TryCancel are conditional updates on payment_status = PENDING; they
// are the single funnel both finalization entry points pass through, which
// is what removes double-fulfillment regardless of which path runs first.
type Store interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByOrderCode(ctx context.Context, code string) (*model.Booking, error)
	TryComplete(ctx context.Context, id uint64, method, transactionID string) (bool, error)
	TryCancel(ctx context.Context, id uint64) (bool, error)
}

// LedgerReader provides the ownership check at creation time.
type LedgerReader interface {
	EntriesForSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.LedgerEntry, error)
}

// SeatCoordinator is the slice of the reservation coordinator used during
// finalization.
type SeatCoordinator interface {
	Book(ctx context.Context, showtimeID uint64, seatIDs []uint64, bookingID uint64) error
	Release(ctx context.Context, showtimeID uint64, seatIDs []uint64, holder string, reason string) ([]uint64, error)
}

// Catalog lookups, all read-only to the core.
type (
	ShowtimeStore interface {
		GetByID(ctx context.Context, id uint64) (*model.Showtime, error)
	}
	SeatStore interface {
		GetByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error)
	}
	ComboStore interface {
		GetByIDs(ctx context.Context, ids []uint64) ([]model.Combo, error)
	}
	VoucherStore interface {
		GetByCode(ctx context.Context, code string) (*model.Voucher, error)
	}
)

// Receipts is the fire-and-forget notification side effect after a
// successful finalization.  Failures must never roll the booking back.
type Receipts interface {
	BookingConfirmed(ctx context.Context, b *model.Booking)
}

// Typed failures callers branch on.
var (
	ErrAlreadyFinalized = errors.New("booking already completed")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrComboInactive    = errors.New("combo is not active")
)

// SeatsUnavailableError reports creation-time ownership failures with the
// offending seat ids so the client can re-render the seat map.
type SeatsUnavailableError struct {
	SeatIDs []uint64
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats no longer available: %v", e.SeatIDs)
}

// ComboSelection is one requested combo line.
type ComboSelection struct {
	ComboID  uint64
	Quantity uint32
}

// CreateInput is everything needed to open a booking.
type CreateInput struct {
	ShowtimeID  uint64
	SeatIDs     []uint64
	Combos      []ComboSelection
	VoucherCode string
	PayerName   string
	PayerEmail  string
}

// Orchestrator implements the booking state machine
// PENDING -> {CONFIRMED(COMPLETED), CANCELLED(FAILED)}.
type Orchestrator struct {
	bookings  Store
	ledger    LedgerReader
	showtimes ShowtimeStore
	seats     SeatStore
	combos    ComboStore
	vouchers  VoucherStore
	coord     SeatCoordinator
	gateway   payment.Gateway
	receipts  Receipts
}

// NewOrchestrator wires an Orchestrator.  receipts may be nil.
func NewOrchestrator(
	bookings Store,
	ledger LedgerReader,
	showtimes ShowtimeStore,
	seats SeatStore,
	combos ComboStore,
	vouchers VoucherStore,
	coord SeatCoordinator,
	gateway payment.Gateway,
	receipts Receipts,
) *Orchestrator {
	return &Orchestrator{
		bookings:  bookings,
		ledger:    ledger,
		showtimes: showtimes,
		seats:     seats,
		combos:    combos,
		vouchers:  vouchers,
		coord:     coord,
		gateway:   gateway,
		receipts:  receipts,
	}
}

// Create verifies seat ownership, computes the price and persists the
// booking in PENDING/PENDING.  Ledger entries are left exactly as they
// are: finalization, not creation, performs the book transition.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput, actor model.Actor) (*model.Booking, error) {
	// A repeated seat id is the same seat, not a second ticket.
	in.SeatIDs = dedupeSeatIDs(in.SeatIDs)

	showtime, err := o.showtimes.GetByID(ctx, in.ShowtimeID)
	if err != nil {
		return nil, err
	}

	entries, err := o.ledger.EntriesForSeats(ctx, in.ShowtimeID, in.SeatIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.LedgerEntry, len(entries))
	for i := range entries {
		byID[entries[i].SeatID] = &entries[i]
	}
	var unavailable []uint64
	for _, seatID := range in.SeatIDs {
		e, ok := byID[seatID]
		if !ok || !o.ownedForBooking(e, actor) {
			unavailable = append(unavailable, seatID)
		}
	}
	if len(unavailable) > 0 {
		return nil, &SeatsUnavailableError{SeatIDs: unavailable}
	}

	seats, err := o.seats.GetByIDs(ctx, in.SeatIDs)
	if err != nil {
		return nil, err
	}
	seatByID := make(map[uint64]*model.Seat, len(seats))
	for i := range seats {
		seatByID[seats[i].ID] = &seats[i]
	}

	b := &model.Booking{
		OrderCode:  uuid.NewString(),
		ShowtimeID: in.ShowtimeID,
		CustomerID: actor.ID,
		PayerName:  in.PayerName,
		PayerEmail: in.PayerEmail,
	}
	seatPrices := make([]int64, 0, len(in.SeatIDs))
	for _, seatID := range in.SeatIDs {
		seat := seatByID[seatID]
		price := byID[seatID].PriceCents
		seatPrices = append(seatPrices, price)
		b.Seats = append(b.Seats, model.BookingSeat{
			SeatID:     seatID,
			RowLabel:   seat.RowLabel,
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
			PriceCents: price,
		})
	}

	comboLines, err := o.resolveCombos(ctx, in.Combos, b)
	if err != nil {
		return nil, err
	}

	var voucher *model.Voucher
	if in.VoucherCode != "" {
		voucher, err = o.vouchers.GetByCode(ctx, in.VoucherCode)
		if err != nil {
			return nil, err
		}
		subtotal := sum(seatPrices) + comboSubtotal(comboLines)
		if err := pricing.ValidateVoucher(voucher, subtotal, showtime.MovieID, showtime.BranchID, time.Now().UTC()); err != nil {
			return nil, err
		}
		b.VoucherID = &voucher.ID
	}

	quote := pricing.ComputeQuote(seatPrices, comboLines, voucher)
	b.SeatTotalCents = quote.SeatTotalCents
	b.ComboTotalCents = quote.ComboTotalCents
	b.DiscountCents = quote.DiscountCents
	b.TotalCents = quote.TotalCents

	if err := o.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ownedForBooking: a seat may enter a booking when the actor holds it
// RESERVED, or when staff books an AVAILABLE seat directly.
func (o *Orchestrator) ownedForBooking(e *model.LedgerEntry, actor model.Actor) bool {
	if e.Status == model.SeatReserved && e.Holder != nil && *e.Holder == actor.ID {
		return true
	}
	if actor.Staff && e.Status == model.SeatAvailable {
		return true
	}
	return false
}

// StartPayment opens a gateway checkout session for a pending booking and
// returns the URL the customer is redirected to.  A gateway failure leaves
// the booking PENDING and the ledger untouched.
func (o *Orchestrator) StartPayment(ctx context.Context, bookingID uint64, actor model.Actor) (string, error) {
	b, err := o.authorizedBooking(ctx, bookingID, actor)
	if err != nil {
		return "", err
	}
	if b.PaymentStatus != model.PaymentPending {
		return "", o.terminalError(b)
	}
	desc := fmt.Sprintf("Cinema booking %s (%d seat(s))", b.OrderCode, len(b.Seats))
	session, err := o.gateway.CreateCheckout(ctx, b.OrderCode, b.TotalCents, desc)
	if err != nil {
		return "", err
	}
	return session.URL, nil
}

// Confirm is the synchronous finalization entry point (cash payment or the
// paying client reporting gateway success).  Confirming a booking that
// already reached a terminal state returns a typed error instead of
// re-finalizing.
func (o *Orchestrator) Confirm(ctx context.Context, bookingID uint64, actor model.Actor, method, transactionID string) (*model.Booking, error) {
	b, err := o.authorizedBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	changed, err := o.finalize(ctx, b, method, transactionID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, o.terminalError(b)
	}
	return o.bookings.GetByID(ctx, bookingID)
}

// HandleWebhook is the asynchronous finalization entry point.  It must be
// idempotent: a replayed PAID webhook for a completed booking is a no-op.
// Failure signals cancel the booking and return its seats.
func (o *Orchestrator) HandleWebhook(ctx context.Context, orderCode, status string) error {
	b, err := o.bookings.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return err
	}
	switch status {
	case payment.StatusPaid:
		_, err := o.finalize(ctx, b, "GATEWAY", orderCode)
		return err
	case payment.StatusFailed, payment.StatusCancelled:
		return o.fail(ctx, b)
	default:
		return fmt.Errorf("unknown webhook status %q for order %s", status, orderCode)
	}
}

// Cancel lets the customer (or staff) abandon a pending booking.  The
// effect is identical to the payment-failure path.  Completed and already
// cancelled bookings are rejected.
func (o *Orchestrator) Cancel(ctx context.Context, bookingID uint64, actor model.Actor) error {
	b, err := o.authorizedBooking(ctx, bookingID, actor)
	if err != nil {
		return err
	}
	if b.PaymentStatus == model.PaymentCompleted {
		return ErrAlreadyFinalized
	}
	if b.BookingStatus == model.BookingCancelled {
		return ErrAlreadyCancelled
	}
	return o.fail(ctx, b)
}

// finalize is the single routine both confirmation paths funnel through.
// The TryComplete conditional update is the guard: whichever caller flips
// payment_status off PENDING performs the ledger transition and the side
// effects; everyone else sees changed=false.
func (o *Orchestrator) finalize(ctx context.Context, b *model.Booking, method, transactionID string) (bool, error) {
	changed, err := o.bookings.TryComplete(ctx, b.ID, method, transactionID)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := o.coord.Book(ctx, b.ShowtimeID, b.SeatIDs(), b.ID); err != nil {
		// Payment is in but a seat slipped away (lease expired and was
		// re-taken before finalization). The booking stays confirmed for
		// manual resolution; silently unwinding a paid booking is worse.
		log.Printf("booking: finalize booking=%d seat transition failed: %v", b.ID, err)
		return true, err
	}
	if o.receipts != nil {
		o.receipts.BookingConfirmed(ctx, b)
	}
	return true, nil
}

// fail moves a pending booking to FAILED/CANCELLED and releases its seats.
// Idempotent via the TryCancel conditional update.
func (o *Orchestrator) fail(ctx context.Context, b *model.Booking) error {
	changed, err := o.bookings.TryCancel(ctx, b.ID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	// Status-only release: the payer's lease may already have expired, and
	// the holder field is cleared either way.
	if _, err := o.coord.Release(ctx, b.ShowtimeID, b.SeatIDs(), "", "booking cancelled"); err != nil {
		log.Printf("booking: release after cancel booking=%d failed: %v", b.ID, err)
	}
	return nil
}

// Get returns a booking the actor is allowed to see.
func (o *Orchestrator) Get(ctx context.Context, bookingID uint64, actor model.Actor) (*model.Booking, error) {
	return o.authorizedBooking(ctx, bookingID, actor)
}

func (o *Orchestrator) authorizedBooking(ctx context.Context, bookingID uint64, actor model.Actor) (*model.Booking, error) {
	b, err := o.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Staff && b.CustomerID != actor.ID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

func (o *Orchestrator) terminalError(b *model.Booking) error {
	if b.BookingStatus == model.BookingCancelled {
		return ErrAlreadyCancelled
	}
	return ErrAlreadyFinalized
}

func (o *Orchestrator) resolveCombos(ctx context.Context, selections []ComboSelection, b *model.Booking) ([]pricing.ComboLine, error) {
	if len(selections) == 0 {
		return nil, nil
	}
	ids := make([]uint64, len(selections))
	for i, sel := range selections {
		ids[i] = sel.ComboID
	}
	combos, err := o.combos.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	comboByID := make(map[uint64]*model.Combo, len(combos))
	for i := range combos {
		comboByID[combos[i].ID] = &combos[i]
	}
	lines := make([]pricing.ComboLine, 0, len(selections))
	for _, sel := range selections {
		combo := comboByID[sel.ComboID]
		if !combo.IsActive {
			return nil, ErrComboInactive
		}
		lines = append(lines, pricing.ComboLine{UnitPriceCents: combo.PriceCents, Quantity: sel.Quantity})
		b.Combos = append(b.Combos, model.BookingCombo{
			ComboID:        combo.ID,
			Name:           combo.Name,
			UnitPriceCents: combo.PriceCents,
			Quantity:       sel.Quantity,
		})
	}
	return lines, nil
}

func dedupeSeatIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sum(xs []int64) int64 {
	var t int64
	for _, x := range xs {
		t += x
	}
	return t
}

func comboSubtotal(lines []pricing.ComboLine) int64 {
	var t int64
	for _, l := range lines {
		t += l.UnitPriceCents * int64(l.Quantity)
	}
	return t
}
