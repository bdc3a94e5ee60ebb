package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cineseat/ticketing/internal/model"
)

// VoucherRepo reads voucher catalog data.  Eligibility rules are applied in
// the pricing package; the repository only fetches.
type VoucherRepo struct {
	db *sql.DB
}

// NewVoucherRepo constructs a VoucherRepo with the given DB handle.
func NewVoucherRepo(db *sql.DB) *VoucherRepo { return &VoucherRepo{db: db} }

// GetByCode loads a voucher by its unique code.  Returns ErrVoucherNotFound
// when the code is unknown.
func (r *VoucherRepo) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	const q = `SELECT id, code, kind, value, max_discount_cents, min_purchase_cents,
	                  movie_id, branch_id, valid_from, valid_until, is_active
	           FROM vouchers WHERE code = ?`
	var v model.Voucher
	var movieID, branchID sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, code).Scan(
		&v.ID, &v.Code, &v.Kind, &v.Value, &v.MaxDiscountCents, &v.MinPurchaseCents,
		&movieID, &branchID, &v.ValidFrom, &v.ValidUntil, &v.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	if movieID.Valid {
		id := uint64(movieID.Int64)
		v.MovieID = &id
	}
	if branchID.Valid {
		id := uint64(branchID.Int64)
		v.BranchID = &id
	}
	return &v, nil
}
