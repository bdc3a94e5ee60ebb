package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cineseat/ticketing/internal/model"
)

// BookingRepo persists bookings together with their seat and combo
// snapshots.  Creation spans three tables and runs inside a transaction;
// finalization transitions are single conditional UPDATEs on the booking
// row so the direct-confirmation and webhook paths can race safely.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts the booking and its snapshot rows.  On success the
// generated ids are populated onto the passed structure.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const ins = `INSERT INTO bookings
	             (order_code, showtime_id, customer_id, payer_name, payer_email,
	              voucher_id, seat_total_cents, combo_total_cents, discount_cents, total_cents,
	              payment_status, booking_status)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		b.OrderCode, b.ShowtimeID, b.CustomerID, b.PayerName, b.PayerEmail,
		b.VoucherID, b.SeatTotalCents, b.ComboTotalCents, b.DiscountCents, b.TotalCents,
		model.PaymentPending, model.BookingPending)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.PaymentStatus = model.PaymentPending
	b.BookingStatus = model.BookingPending

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, seat_id, row_label, seat_number, seat_type, price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Seats)*6)
		for i := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?)"
			s := &b.Seats[i]
			s.BookingID = b.ID
			args = append(args, b.ID, s.SeatID, s.RowLabel, s.SeatNumber, s.SeatType, s.PriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if len(b.Combos) > 0 {
		query := `INSERT INTO booking_combos (booking_id, combo_id, name, unit_price_cents, quantity) VALUES `
		args := make([]interface{}, 0, len(b.Combos)*5)
		for i := range b.Combos {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			cb := &b.Combos[i]
			cb.BookingID = b.ID
			args = append(args, b.ID, cb.ComboID, cb.Name, cb.UnitPriceCents, cb.Quantity)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads a booking with its seat and combo snapshots.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.getOne(ctx, `WHERE b.id = ?`, id)
}

// GetByOrderCode locates a booking by the order code handed to the payment
// gateway.  The webhook path uses this because the original HTTP caller is
// usually long gone.
func (r *BookingRepo) GetByOrderCode(ctx context.Context, code string) (*model.Booking, error) {
	return r.getOne(ctx, `WHERE b.order_code = ?`, code)
}

func (r *BookingRepo) getOne(ctx context.Context, where string, arg interface{}) (*model.Booking, error) {
	q := `SELECT b.id, b.order_code, b.showtime_id, b.customer_id, b.payer_name, b.payer_email,
	             b.voucher_id, b.seat_total_cents, b.combo_total_cents, b.discount_cents, b.total_cents,
	             b.payment_status, b.booking_status, b.payment_method, b.transaction_id,
	             b.created_at, b.updated_at
	      FROM bookings b ` + where
	var b model.Booking
	var voucherID sql.NullInt64
	var method, txn sql.NullString
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&b.ID, &b.OrderCode, &b.ShowtimeID, &b.CustomerID, &b.PayerName, &b.PayerEmail,
		&voucherID, &b.SeatTotalCents, &b.ComboTotalCents, &b.DiscountCents, &b.TotalCents,
		&b.PaymentStatus, &b.BookingStatus, &method, &txn,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if voucherID.Valid {
		v := uint64(voucherID.Int64)
		b.VoucherID = &v
	}
	if method.Valid {
		m := method.String
		b.PaymentMethod = &m
	}
	if txn.Valid {
		t := txn.String
		b.TransactionID = &t
	}

	const seatsQ = `SELECT id, booking_id, seat_id, row_label, seat_number, seat_type, price_cents
	                FROM booking_seats WHERE booking_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, seatsQ, b.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s model.BookingSeat
		if scanErr := rows.Scan(&s.ID, &s.BookingID, &s.SeatID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceCents); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		b.Seats = append(b.Seats, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	const combosQ = `SELECT id, booking_id, combo_id, name, unit_price_cents, quantity
	                 FROM booking_combos WHERE booking_id = ? ORDER BY id`
	rows, err = r.db.QueryContext(ctx, combosQ, b.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var cb model.BookingCombo
		if scanErr := rows.Scan(&cb.ID, &cb.BookingID, &cb.ComboID, &cb.Name, &cb.UnitPriceCents, &cb.Quantity); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		b.Combos = append(b.Combos, cb)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return &b, nil
}

// TryComplete performs PENDING -> COMPLETED/CONFIRMED as one conditional
// update.  It reports false when the booking was not payment-pending, which
// callers use to make finalization idempotent under webhook replays and
// direct-confirmation races.
func (r *BookingRepo) TryComplete(ctx context.Context, id uint64, method, transactionID string) (bool, error) {
	const q = `UPDATE bookings
	           SET payment_status = ?, booking_status = ?, payment_method = ?, transaction_id = ?
	           WHERE id = ? AND payment_status = ?`
	res, err := r.db.ExecContext(ctx, q,
		model.PaymentCompleted, model.BookingConfirmed, method, transactionID,
		id, model.PaymentPending)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}

// TryCancel performs PENDING -> FAILED/CANCELLED with the same conditional
// discipline as TryComplete.
func (r *BookingRepo) TryCancel(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE bookings
	           SET payment_status = ?, booking_status = ?
	           WHERE id = ? AND payment_status = ?`
	res, err := r.db.ExecContext(ctx, q,
		model.PaymentFailed, model.BookingCancelled,
		id, model.PaymentPending)
	if err != nil {
		return false, err
	}
	return oneRow(res)
}
