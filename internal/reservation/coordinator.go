// Package reservation implements the seat-reservation concurrency engine:
// the coordinator that performs atomic conditional transitions on the seat
// ledger, and the reclaimer that bounds how long an abandoned lease can
// leak a seat.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cineseat/ticketing/internal/model"
	"github.com/cineseat/ticketing/internal/notifier"
	"github.com/cineseat/ticketing/internal/repository"
)

// LedgerStore is the slice of the ledger repository the engine depends on.
// Every Try* method must be atomic at the single-entry level: the
// precondition check and the write happen as one indivisible step against
// the shared store, because multiple service instances run concurrently and
// no in-process lock can guard ledger state.
type LedgerStore interface {
	TrySelect(ctx context.Context, showtimeID, seatID uint64, holder string, expiresAt time.Time) (bool, error)
	TryReserve(ctx context.Context, showtimeID, seatID uint64, holder string, expiresAt time.Time, allowUpgrade bool) (bool, error)
	TryBook(ctx context.Context, showtimeID, seatID, bookingID uint64) (bool, error)
	TryUnbook(ctx context.Context, showtimeID, seatID, bookingID uint64) (bool, error)
	TryRelease(ctx context.Context, showtimeID, seatID uint64, holder string) (bool, error)
	TryReleaseExpired(ctx context.Context, showtimeID, seatID uint64, holder string, now time.Time) (bool, error)
	ReleaseSelectingByHolder(ctx context.Context, showtimeID uint64, holder string) ([]uint64, error)
	ExpiredLeases(ctx context.Context, now time.Time) ([]repository.ExpiredLease, error)
}

// deferredScheduler arms a one-shot release for a freshly acquired lease.
// Implemented by the Reclaimer; settable separately to break the mutual
// reference between coordinator and reclaimer.
type deferredScheduler interface {
	Schedule(showtimeID uint64, seatIDs []uint64, holder string, ttl time.Duration)
}

// Validation errors returned before the ledger is touched.
var (
	ErrNoSeats      = errors.New("no seats requested")
	ErrTooManySeats = errors.New("too many seats in one transaction")
)

// ConflictError reports that a batch operation lost the race for specific
// seats.  Losers re-render from the live seat map and may retry a subset.
type ConflictError struct {
	SeatIDs []uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seats no longer available: %v", e.SeatIDs)
}

// Config carries the injected TTL per reservation kind.  The soft select
// hold and the firmer reserve-for-payment hold are deliberately the only
// two kinds; ad hoc per-call-site TTLs are not supported.
type Config struct {
	SelectTTL  time.Duration // soft hold while picking seats
	PaymentTTL time.Duration // firm hold while paying
	MaxBatch   int           // max seats per select/reserve/book call
}

// Coordinator is the only writer of the seat ledger.  Batched operations
// are all-or-nothing via explicit compensation: the underlying store only
// guarantees atomicity per entry, so a failed batch releases exactly the
// seats this call just acquired, conditioned on still holding them.
type Coordinator struct {
	store  LedgerStore
	events notifier.Publisher
	cfg    Config
	sched  deferredScheduler
}

// NewCoordinator wires the coordinator.  events must be non-nil; use the
// notifier even in degraded local-only mode.
func NewCoordinator(store LedgerStore, events notifier.Publisher, cfg Config) *Coordinator {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 8
	}
	return &Coordinator{store: store, events: events, cfg: cfg}
}

// SetScheduler attaches the deferred-release scheduler.  Optional: without
// it, expired leases are still reclaimed by the sweep, just less promptly.
func (c *Coordinator) SetScheduler(s deferredScheduler) { c.sched = s }

// Select acquires soft SELECTING holds on the batch for the actor.  On any
// seat losing the race, seats already won by this call are released again
// and a ConflictError names the unavailable seat.  Returns the lease
// expiry on success.
func (c *Coordinator) Select(ctx context.Context, showtimeID uint64, seatIDs []uint64, actor model.Actor) (time.Time, error) {
	seatIDs, err := c.checkBatch(seatIDs)
	if err != nil {
		return time.Time{}, err
	}
	expiresAt := time.Now().UTC().Add(c.cfg.SelectTTL)
	acquired := make([]uint64, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		ok, err := c.store.TrySelect(ctx, showtimeID, seatID, actor.ID, expiresAt)
		if err != nil {
			c.compensate(ctx, showtimeID, acquired, actor.ID)
			return time.Time{}, err
		}
		if !ok {
			c.compensate(ctx, showtimeID, acquired, actor.ID)
			return time.Time{}, &ConflictError{SeatIDs: []uint64{seatID}}
		}
		acquired = append(acquired, seatID)
	}
	c.publish(ctx, showtimeID, notifier.EventSelecting, acquired, actor.ID)
	if c.sched != nil {
		c.sched.Schedule(showtimeID, acquired, actor.ID, c.cfg.SelectTTL)
	}
	return expiresAt, nil
}

// Reserve acquires firm RESERVED holds for the payment flow.  The
// precondition accepts AVAILABLE seats, and for authenticated actors also
// SELECTING seats they already hold (upgrading the soft hold).  Guests may
// only start from AVAILABLE.
func (c *Coordinator) Reserve(ctx context.Context, showtimeID uint64, seatIDs []uint64, actor model.Actor) (time.Time, error) {
	seatIDs, err := c.checkBatch(seatIDs)
	if err != nil {
		return time.Time{}, err
	}
	allowUpgrade := !actor.Guest
	expiresAt := time.Now().UTC().Add(c.cfg.PaymentTTL)
	acquired := make([]uint64, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		ok, err := c.store.TryReserve(ctx, showtimeID, seatID, actor.ID, expiresAt, allowUpgrade)
		if err != nil {
			c.compensate(ctx, showtimeID, acquired, actor.ID)
			return time.Time{}, err
		}
		if !ok {
			c.compensate(ctx, showtimeID, acquired, actor.ID)
			return time.Time{}, &ConflictError{SeatIDs: []uint64{seatID}}
		}
		acquired = append(acquired, seatID)
	}
	c.publish(ctx, showtimeID, notifier.EventReserved, acquired, actor.ID)
	if c.sched != nil {
		c.sched.Schedule(showtimeID, acquired, actor.ID, c.cfg.PaymentTTL)
	}
	return expiresAt, nil
}

// Book finalizes the batch into BOOKED linked to bookingID.  Precondition
// per seat is AVAILABLE or RESERVED (employee-assisted flows book straight
// from available).  On a mid-batch failure the seats already booked by
// this call are un-booked again, conditioned on carrying this bookingID.
func (c *Coordinator) Book(ctx context.Context, showtimeID uint64, seatIDs []uint64, bookingID uint64) error {
	seatIDs, err := c.checkBatch(seatIDs)
	if err != nil {
		return err
	}
	booked := make([]uint64, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		ok, err := c.store.TryBook(ctx, showtimeID, seatID, bookingID)
		if err != nil {
			c.unbook(ctx, showtimeID, booked, bookingID)
			return err
		}
		if !ok {
			c.unbook(ctx, showtimeID, booked, bookingID)
			return &ConflictError{SeatIDs: []uint64{seatID}}
		}
		booked = append(booked, seatID)
	}
	c.publish(ctx, showtimeID, notifier.EventBooked, booked, fmt.Sprintf("booking:%d", bookingID))
	return nil
}

// Release returns seats to AVAILABLE.  With a holder, only that holder's
// leases are touched (manual release by the owner); with an empty holder
// the match is on status alone (booking-failure and cancellation paths).
// The operation is idempotent: seats that are not in a releasable state,
// including leases that already expired and were swept, are skipped without
// error.  The returned slice holds the seats actually released.
func (c *Coordinator) Release(ctx context.Context, showtimeID uint64, seatIDs []uint64, holder string, reason string) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	released := make([]uint64, 0, len(seatIDs))
	for _, seatID := range dedupe(seatIDs) {
		ok, err := c.store.TryRelease(ctx, showtimeID, seatID, holder)
		if err != nil {
			// Publish what we did release before bailing; the sweep
			// retries the remainder.
			log.Printf("reservation: release seat=%d showtime=%d failed: %v", seatID, showtimeID, err)
			break
		}
		if ok {
			released = append(released, seatID)
		}
	}
	if len(released) > 0 {
		log.Printf("reservation: released %d seat(s) showtime=%d reason=%s", len(released), showtimeID, reason)
		c.publish(ctx, showtimeID, notifier.EventReleased, released, holder)
	}
	return released, nil
}

// ReleaseExpired returns seats to AVAILABLE only when the holder's lease
// has actually expired.  The expiry-driven paths (deferred timers, sweep)
// must use this instead of Release: a stale select timer firing after the
// holder upgraded to a RESERVED payment hold would otherwise release a
// lease that is still live.
func (c *Coordinator) ReleaseExpired(ctx context.Context, showtimeID uint64, seatIDs []uint64, holder string, reason string) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	released := make([]uint64, 0, len(seatIDs))
	for _, seatID := range dedupe(seatIDs) {
		ok, err := c.store.TryReleaseExpired(ctx, showtimeID, seatID, holder, now)
		if err != nil {
			log.Printf("reservation: expired release seat=%d showtime=%d failed: %v", seatID, showtimeID, err)
			break
		}
		if ok {
			released = append(released, seatID)
		}
	}
	if len(released) > 0 {
		log.Printf("reservation: released %d expired seat(s) showtime=%d reason=%s", len(released), showtimeID, reason)
		c.publish(ctx, showtimeID, notifier.EventReleased, released, holder)
	}
	return released, nil
}

// ReleaseSelecting drops every SELECTING lease the holder has on the
// showtime.  Used when a realtime channel disconnects: soft holds die with
// the connection, RESERVED holds survive for the payment flow.
func (c *Coordinator) ReleaseSelecting(ctx context.Context, showtimeID uint64, holder string) error {
	released, err := c.store.ReleaseSelectingByHolder(ctx, showtimeID, holder)
	if err != nil {
		return err
	}
	if len(released) > 0 {
		c.publish(ctx, showtimeID, notifier.EventReleased, released, holder)
	}
	return nil
}

// compensate rolls back seats this call acquired, conditioned on the
// holder still owning them.  Releasing a seat we just acquired is never
// observably harmful to another actor, which is what makes compensation a
// safe substitute for a cross-record transaction.
func (c *Coordinator) compensate(ctx context.Context, showtimeID uint64, seatIDs []uint64, holder string) {
	for _, seatID := range seatIDs {
		if _, err := c.store.TryRelease(ctx, showtimeID, seatID, holder); err != nil {
			// The sweep reclaims whatever this leaves behind.
			log.Printf("reservation: rollback release seat=%d showtime=%d failed: %v", seatID, showtimeID, err)
		}
	}
}

func (c *Coordinator) unbook(ctx context.Context, showtimeID uint64, seatIDs []uint64, bookingID uint64) {
	for _, seatID := range seatIDs {
		if _, err := c.store.TryUnbook(ctx, showtimeID, seatID, bookingID); err != nil {
			log.Printf("reservation: rollback unbook seat=%d showtime=%d failed: %v", seatID, showtimeID, err)
		}
	}
}

func (c *Coordinator) publish(ctx context.Context, showtimeID uint64, eventType string, seatIDs []uint64, actor string) {
	c.events.Publish(ctx, showtimeID, notifier.Event{
		Type:      eventType,
		SeatIDs:   seatIDs,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Coordinator) checkBatch(seatIDs []uint64) ([]uint64, error) {
	seatIDs = dedupe(seatIDs)
	if len(seatIDs) == 0 {
		return nil, ErrNoSeats
	}
	if len(seatIDs) > c.cfg.MaxBatch {
		return nil, ErrTooManySeats
	}
	return seatIDs, nil
}

func dedupe(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
