package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cineseat/ticketing/internal/model"
)

// LedgerRepo provides data access to the seat_ledger table, the record of
// one status per (showtime, seat) pair.  Every state transition is a single
// conditional UPDATE whose WHERE clause encodes the precondition; the
// affected-row count decides success.  The database's single-row atomicity
// is the only concurrency primitive relied upon, so the repository works
// correctly when several service instances share one database.
type LedgerRepo struct {
	db *sql.DB
}

// NewLedgerRepo returns a LedgerRepo bound to the provided database.
func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{db: db} }

// ExpiredLease identifies a lease whose expiry has passed, as found by the
// reclaimer sweep.
type ExpiredLease struct {
	ShowtimeID uint64
	SeatID     uint64
	Holder     string
}

// InitForShowtime creates AVAILABLE ledger entries for every given seat of
// a showtime, pricing each from the showtime's price table by seat type.
// INSERT IGNORE makes initialization idempotent: entries that already exist
// are left untouched, preserving the one-entry-per-(showtime, seat)
// invariant under concurrent first reads.
func (r *LedgerRepo) InitForShowtime(ctx context.Context, showtimeID uint64, seats []model.Seat, priceFor func(seatType string) int64) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT IGNORE INTO seat_ledger (showtime_id, seat_id, status, price_cents) VALUES `
	args := make([]interface{}, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, showtimeID, s.ID, string(model.SeatAvailable), priceFor(s.SeatType))
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// SeatMap returns every seat of the showtime joined with its live ledger
// status, ordered by row and number.  The read reflects the latest
// committed state; clients reconcile missed realtime events against it.
func (r *LedgerRepo) SeatMap(ctx context.Context, showtimeID uint64) ([]model.SeatView, error) {
	const q = `SELECT l.seat_id, s.row_label, s.seat_number, s.seat_type, l.status, l.price_cents, l.lease_expires_at
	           FROM seat_ledger l
	           JOIN seats s ON s.id = l.seat_id
	           WHERE l.showtime_id = ?
	           ORDER BY s.row_label, s.seat_number`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []model.SeatView
	for rows.Next() {
		var v model.SeatView
		var expires sql.NullTime
		if err := rows.Scan(&v.SeatID, &v.RowLabel, &v.SeatNumber, &v.SeatType, &v.Status, &v.PriceCents, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			v.LeaseExpiresAt = &t
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// CountByStatus returns the number of ledger entries per status for a
// showtime, used for capacity display.
func (r *LedgerRepo) CountByStatus(ctx context.Context, showtimeID uint64) (map[model.SeatStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM seat_ledger WHERE showtime_id = ? GROUP BY status`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.SeatStatus]int)
	for rows.Next() {
		var status model.SeatStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// EntriesForSeats loads the ledger entries for the given seats of a
// showtime.  The result may be shorter than seatIDs when some entries do
// not exist; callers treat missing entries as unavailable seats.
func (r *LedgerRepo) EntriesForSeats(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.LedgerEntry, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	q := `SELECT showtime_id, seat_id, status, holder, held_at, lease_expires_at, booking_id, price_cents
	      FROM seat_ledger WHERE showtime_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var holder sql.NullString
		var heldAt, expires sql.NullTime
		var bookingID sql.NullInt64
		if err := rows.Scan(&e.ShowtimeID, &e.SeatID, &e.Status, &holder, &heldAt, &expires, &bookingID, &e.PriceCents); err != nil {
			return nil, err
		}
		if holder.Valid {
			h := holder.String
			e.Holder = &h
		}
		if heldAt.Valid {
			t := heldAt.Time
			e.HeldAt = &t
		}
		if expires.Valid {
			t := expires.Time
			e.LeaseExpiresAt = &t
		}
		if bookingID.Valid {
			id := uint64(bookingID.Int64)
			e.BookingID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TrySelect attempts AVAILABLE -> SELECTING for one seat.  It reports true
// when this caller won the seat and false when the precondition did not
// match (taken by someone else, or no such entry).
func (r *LedgerRepo) TrySelect(ctx context.Context, showtimeID, seatID uint64, holder string, expiresAt time.Time) (bool, error) {
	const q = `UPDATE seat_ledger
	           SET status = ?, holder = ?, held_at = UTC_TIMESTAMP(), lease_expires_at = ?
	           WHERE showtime_id = ? AND seat_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		string(model.SeatSelecting), holder, expiresAt.UTC(),
		showtimeID, seatID, string(model.SeatAvailable))
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// TryReserve attempts a transition to RESERVED.  The precondition accepts
// AVAILABLE, and additionally SELECTING held by the same holder when
// allowUpgrade is true (authenticated callers firming up a soft hold).
func (r *LedgerRepo) TryReserve(ctx context.Context, showtimeID, seatID uint64, holder string, expiresAt time.Time, allowUpgrade bool) (bool, error) {
	var res sql.Result
	var err error
	if allowUpgrade {
		const q = `UPDATE seat_ledger
		           SET status = ?, holder = ?, held_at = UTC_TIMESTAMP(), lease_expires_at = ?
		           WHERE showtime_id = ? AND seat_id = ?
		             AND (status = ? OR (status = ? AND holder = ?))`
		res, err = r.db.ExecContext(ctx, q,
			string(model.SeatReserved), holder, expiresAt.UTC(),
			showtimeID, seatID,
			string(model.SeatAvailable), string(model.SeatSelecting), holder)
	} else {
		const q = `UPDATE seat_ledger
		           SET status = ?, holder = ?, held_at = UTC_TIMESTAMP(), lease_expires_at = ?
		           WHERE showtime_id = ? AND seat_id = ? AND status = ?`
		res, err = r.db.ExecContext(ctx, q,
			string(model.SeatReserved), holder, expiresAt.UTC(),
			showtimeID, seatID, string(model.SeatAvailable))
	}
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// TryBook attempts {AVAILABLE, RESERVED} -> BOOKED, linking the entry to a
// booking and clearing the lease.  This is the only terminal-success
// transition; it is reversed solely through TryUnbook compensation or an
// explicit cancellation release.
func (r *LedgerRepo) TryBook(ctx context.Context, showtimeID, seatID, bookingID uint64) (bool, error) {
	const q = `UPDATE seat_ledger
	           SET status = ?, booking_id = ?, holder = NULL, held_at = NULL, lease_expires_at = NULL
	           WHERE showtime_id = ? AND seat_id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		string(model.SeatBooked), bookingID,
		showtimeID, seatID,
		string(model.SeatAvailable), string(model.SeatReserved))
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// TryUnbook reverses a TryBook performed for the same booking.  It exists
// only as batch compensation: when booking seat N fails, seats 1..N-1 just
// booked for that booking are returned to AVAILABLE.  The booking-id match
// guarantees no other booking's seats can be touched.
func (r *LedgerRepo) TryUnbook(ctx context.Context, showtimeID, seatID, bookingID uint64) (bool, error) {
	const q = `UPDATE seat_ledger
	           SET status = ?, booking_id = NULL
	           WHERE showtime_id = ? AND seat_id = ? AND status = ? AND booking_id = ?`
	res, err := r.db.ExecContext(ctx, q,
		string(model.SeatAvailable),
		showtimeID, seatID, string(model.SeatBooked), bookingID)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// TryRelease attempts {SELECTING, RESERVED} -> AVAILABLE, clearing holder
// and lease.  When holder is non-empty, the entry must be held by that
// holder; the empty string matches on status alone (booking-failure and
// cancellation paths).  A false result means the seat was not in a
// releasable state, which callers treat as an idempotent no-op.
func (r *LedgerRepo) TryRelease(ctx context.Context, showtimeID, seatID uint64, holder string) (bool, error) {
	var res sql.Result
	var err error
	if holder != "" {
		const q = `UPDATE seat_ledger
		           SET status = ?, holder = NULL, held_at = NULL, lease_expires_at = NULL
		           WHERE showtime_id = ? AND seat_id = ? AND status IN (?, ?) AND holder = ?`
		res, err = r.db.ExecContext(ctx, q,
			string(model.SeatAvailable),
			showtimeID, seatID,
			string(model.SeatSelecting), string(model.SeatReserved), holder)
	} else {
		const q = `UPDATE seat_ledger
		           SET status = ?, holder = NULL, held_at = NULL, lease_expires_at = NULL
		           WHERE showtime_id = ? AND seat_id = ? AND status IN (?, ?)`
		res, err = r.db.ExecContext(ctx, q,
			string(model.SeatAvailable),
			showtimeID, seatID,
			string(model.SeatSelecting), string(model.SeatReserved))
	}
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// TryReleaseExpired is the release variant for the expiry-driven paths
// (deferred timers and the sweep).  Besides the holder match it requires
// the lease to actually be expired: between arming a timer and it firing
// the holder may have traded the soft hold for a fresh payment lease, and
// that live lease must not be torn down.
func (r *LedgerRepo) TryReleaseExpired(ctx context.Context, showtimeID, seatID uint64, holder string, now time.Time) (bool, error) {
	const q = `UPDATE seat_ledger
	           SET status = ?, holder = NULL, held_at = NULL, lease_expires_at = NULL
	           WHERE showtime_id = ? AND seat_id = ? AND status IN (?, ?)
	             AND holder = ? AND lease_expires_at <= ?`
	res, err := r.db.ExecContext(ctx, q,
		string(model.SeatAvailable),
		showtimeID, seatID,
		string(model.SeatSelecting), string(model.SeatReserved),
		holder, now.UTC())
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// ReleaseSelectingByHolder releases every SELECTING entry of a holder for
// one showtime and returns the seat ids that were actually released.  It
// backs the implicit release performed when a realtime channel disconnects;
// RESERVED entries survive so a payment flow on a flaky connection is not
// punished.
func (r *LedgerRepo) ReleaseSelectingByHolder(ctx context.Context, showtimeID uint64, holder string) ([]uint64, error) {
	const sel = `SELECT seat_id FROM seat_ledger WHERE showtime_id = ? AND status = ? AND holder = ?`
	rows, err := r.db.QueryContext(ctx, sel, showtimeID, string(model.SeatSelecting), holder)
	if err != nil {
		return nil, err
	}
	var seatIDs []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		seatIDs = append(seatIDs, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	released := make([]uint64, 0, len(seatIDs))
	for _, id := range seatIDs {
		ok, err := r.TryRelease(ctx, showtimeID, id, holder)
		if err != nil {
			return released, err
		}
		if ok {
			released = append(released, id)
		}
	}
	return released, nil
}

// ExpiredLeases returns every lease whose expiry is at or before now,
// ordered by showtime so the sweep can group notifications.
func (r *LedgerRepo) ExpiredLeases(ctx context.Context, now time.Time) ([]ExpiredLease, error) {
	const q = `SELECT showtime_id, seat_id, holder FROM seat_ledger
	           WHERE status IN (?, ?) AND lease_expires_at <= ?
	           ORDER BY showtime_id`
	rows, err := r.db.QueryContext(ctx, q,
		string(model.SeatSelecting), string(model.SeatReserved), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var leases []ExpiredLease
	for rows.Next() {
		var l ExpiredLease
		if err := rows.Scan(&l.ShowtimeID, &l.SeatID, &l.Holder); err != nil {
			return nil, err
		}
		leases = append(leases, l)
	}
	return leases, rows.Err()
}

// DeleteForShowtime removes all ledger entries of a showtime.  It refuses
// with ErrConflict while any entry is BOOKED, so paid seats can never be
// silently destroyed.
func (r *LedgerRepo) DeleteForShowtime(ctx context.Context, showtimeID uint64) error {
	const check = `SELECT COUNT(*) FROM seat_ledger WHERE showtime_id = ? AND status = ?`
	var booked int
	if err := r.db.QueryRowContext(ctx, check, showtimeID, string(model.SeatBooked)).Scan(&booked); err != nil {
		return err
	}
	if booked > 0 {
		return ErrConflict
	}
	const del = `DELETE FROM seat_ledger WHERE showtime_id = ? AND status <> ?`
	_, err := r.db.ExecContext(ctx, del, showtimeID, string(model.SeatBooked))
	return err
}

// HasLeftAvailable reports whether any ledger entry of the showtime is not
// AVAILABLE.  Showtime edits that move the screening or change the theater
// are rejected while this holds.
func (r *LedgerRepo) HasLeftAvailable(ctx context.Context, showtimeID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM seat_ledger WHERE showtime_id = ? AND status <> ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, showtimeID, string(model.SeatAvailable)).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// oneRow interprets an UPDATE result as a conditional-transition outcome.
func oneRow(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// placeholders builds "?, ?, ..." for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
