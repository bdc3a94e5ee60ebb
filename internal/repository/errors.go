// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting SQL errors directly.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, such as confirming somebody else's booking.
// Handlers translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as deleting ledger entries while seats are
// still booked. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrShowtimeNotFound indicates that a showtime lookup yielded no rows.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrSeatNotFound indicates that one or more seats do not exist.
var ErrSeatNotFound = errors.New("seat not found")

// ErrBookingNotFound indicates that a booking lookup yielded no rows.
var ErrBookingNotFound = errors.New("booking not found")

// ErrVoucherNotFound indicates that a voucher code is unknown.
var ErrVoucherNotFound = errors.New("voucher not found")

// ErrComboNotFound indicates that a combo id is unknown.
var ErrComboNotFound = errors.New("combo not found")
