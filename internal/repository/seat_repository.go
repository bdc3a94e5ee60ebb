package repository

import (
	"context"
	"database/sql"

	"github.com/cineseat/ticketing/internal/model"
)

// SeatRepo reads the static seat catalog.  Seats are never mutated by the
// reservation core; their attributes are snapshotted into bookings.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// ListActiveByTheater returns every active seat of a theater, used when
// lazily initializing a showtime's ledger entries.
func (r *SeatRepo) ListActiveByTheater(ctx context.Context, theaterID uint64) ([]model.Seat, error) {
	const q = `SELECT id, theater_id, branch_id, row_label, seat_number, seat_type, is_active
	           FROM seats WHERE theater_id = ? AND is_active = 1
	           ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, theaterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.TheaterID, &s.BranchID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.IsActive); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// GetByIDs loads the given seats.  Returns ErrSeatNotFound when any id is
// missing, since callers always expect the full set.
func (r *SeatRepo) GetByIDs(ctx context.Context, seatIDs []uint64) ([]model.Seat, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	q := `SELECT id, theater_id, branch_id, row_label, seat_number, seat_type, is_active
	      FROM seats WHERE id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, len(seatIDs))
	for i, id := range seatIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.TheaterID, &s.BranchID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.IsActive); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(seats) != len(seatIDs) {
		return nil, ErrSeatNotFound
	}
	return seats, nil
}
