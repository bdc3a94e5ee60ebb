package repository

import (
	"context"
	"database/sql"

	"github.com/cineseat/ticketing/internal/model"
)

// ComboRepo reads combo catalog data.
type ComboRepo struct {
	db *sql.DB
}

// NewComboRepo constructs a ComboRepo with the given DB handle.
func NewComboRepo(db *sql.DB) *ComboRepo { return &ComboRepo{db: db} }

// GetByIDs loads the given combos.  Returns ErrComboNotFound when any id is
// missing; inactive combos are returned and rejected by the orchestrator so
// the error can name the offending line.
func (r *ComboRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Combo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT id, name, price_cents, is_active FROM combos WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var combos []model.Combo
	for rows.Next() {
		var cb model.Combo
		if err := rows.Scan(&cb.ID, &cb.Name, &cb.PriceCents, &cb.IsActive); err != nil {
			return nil, err
		}
		combos = append(combos, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(combos) != len(ids) {
		return nil, ErrComboNotFound
	}
	return combos, nil
}
