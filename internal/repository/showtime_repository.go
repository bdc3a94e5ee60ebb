package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cineseat/ticketing/internal/model"
)

// ShowtimeRepo reads showtime catalog data.  The reservation core treats
// showtimes as read-only: scheduling CRUD belongs to the catalog service,
// which consults the ledger guards (HasLeftAvailable, DeleteForShowtime)
// before mutating anything.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo with the given DB handle.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// GetByID loads one showtime including its per-seat-type price table.
// Returns ErrShowtimeNotFound when no row exists.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_id, theater_id, branch_id, starts_at, ends_at,
	                  price_standard_cents, price_vip_cents, price_couple_cents,
	                  status, created_at, updated_at
	           FROM showtimes WHERE id = ?`
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&st.ID, &st.MovieID, &st.TheaterID, &st.BranchID,
		&st.StartsAt, &st.EndsAt,
		&st.Prices.StandardCents, &st.Prices.VIPCents, &st.Prices.CoupleCents,
		&st.Status, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
