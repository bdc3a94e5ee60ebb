package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineseat/ticketing/internal/model"
)

var table = model.PriceTable{
	StandardCents: 150000,
	VIPCents:      200000,
	CoupleCents:   350000,
}

func TestPriceForFallsBackToStandard(t *testing.T) {
	assert.Equal(t, int64(150000), PriceFor(model.SeatTypeStandard, table))
	assert.Equal(t, int64(200000), PriceFor(model.SeatTypeVIP, table))
	assert.Equal(t, int64(350000), PriceFor(model.SeatTypeCouple, table))
	assert.Equal(t, int64(150000), PriceFor("RECLINER", table))
}

func TestComputeQuotePercentVoucher(t *testing.T) {
	// Two standard seats plus combos: 300000 + 80000 = 380000 subtotal.
	// 10% = 38000, under the 50000 cap.
	v := &model.Voucher{Kind: model.VoucherPercent, Value: 10, MaxDiscountCents: 50000}
	q := ComputeQuote(
		[]int64{150000, 150000},
		[]ComboLine{{UnitPriceCents: 40000, Quantity: 2}},
		v,
	)
	assert.Equal(t, int64(300000), q.SeatTotalCents)
	assert.Equal(t, int64(80000), q.ComboTotalCents)
	assert.Equal(t, int64(38000), q.DiscountCents)
	assert.Equal(t, int64(342000), q.TotalCents)
}

func TestComputeQuoteFlatVoucherCapped(t *testing.T) {
	v := &model.Voucher{Kind: model.VoucherFlat, Value: 100000, MaxDiscountCents: 50000}
	q := ComputeQuote(
		[]int64{150000, 150000},
		[]ComboLine{{UnitPriceCents: 40000, Quantity: 2}},
		v,
	)
	assert.Equal(t, int64(50000), q.DiscountCents)
	assert.Equal(t, int64(330000), q.TotalCents)
}

func TestComputeQuoteFlooredAtZero(t *testing.T) {
	v := &model.Voucher{Kind: model.VoucherFlat, Value: 500000}
	q := ComputeQuote([]int64{150000}, nil, v)
	assert.Equal(t, int64(150000), q.DiscountCents, "discount never exceeds the subtotal")
	assert.Equal(t, int64(0), q.TotalCents)
}

func TestComputeQuoteWithoutVoucher(t *testing.T) {
	q := ComputeQuote([]int64{200000}, nil, nil)
	assert.Equal(t, int64(0), q.DiscountCents)
	assert.Equal(t, int64(200000), q.TotalCents)
}

func TestValidateVoucher(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	movieID, branchID := uint64(5), uint64(9)
	base := model.Voucher{
		Kind:             model.VoucherPercent,
		Value:            10,
		MinPurchaseCents: 100000,
		ValidFrom:        now.Add(-24 * time.Hour),
		ValidUntil:       now.Add(24 * time.Hour),
		IsActive:         true,
	}

	require.NoError(t, ValidateVoucher(&base, 200000, movieID, branchID, now))

	inactive := base
	inactive.IsActive = false
	assert.ErrorIs(t, ValidateVoucher(&inactive, 200000, movieID, branchID, now), ErrVoucherInactive)

	expired := base
	expired.ValidUntil = now.Add(-time.Hour)
	assert.ErrorIs(t, ValidateVoucher(&expired, 200000, movieID, branchID, now), ErrVoucherExpired)

	assert.ErrorIs(t, ValidateVoucher(&base, 50000, movieID, branchID, now), ErrVoucherMinPurchase)

	otherMovie := uint64(6)
	scoped := base
	scoped.MovieID = &otherMovie
	assert.ErrorIs(t, ValidateVoucher(&scoped, 200000, movieID, branchID, now), ErrVoucherWrongMovie)

	otherBranch := uint64(1)
	scoped = base
	scoped.BranchID = &otherBranch
	assert.ErrorIs(t, ValidateVoucher(&scoped, 200000, movieID, branchID, now), ErrVoucherWrongBranch)
}
