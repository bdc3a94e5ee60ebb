package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineseat/ticketing/internal/model"
	"github.com/cineseat/ticketing/internal/payment"
	"github.com/cineseat/ticketing/internal/pricing"
	"github.com/cineseat/ticketing/internal/repository"
)

// fakeBookingStore mirrors the conditional-update contract of the SQL
// repository: TryComplete and TryCancel only succeed while the payment
// status is still PENDING.
type fakeBookingStore struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.Booking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{nextID: 1, byID: make(map[uint64]*model.Booking)}
}

func (s *fakeBookingStore) Create(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextID
	s.nextID++
	b.PaymentStatus = model.PaymentPending
	b.BookingStatus = model.BookingPending
	cp := *b
	s.byID[b.ID] = &cp
	return nil
}

func (s *fakeBookingStore) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeBookingStore) GetByOrderCode(_ context.Context, code string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.byID {
		if b.OrderCode == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (s *fakeBookingStore) TryComplete(_ context.Context, id uint64, method, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok || b.PaymentStatus != model.PaymentPending {
		return false, nil
	}
	b.PaymentStatus = model.PaymentCompleted
	b.BookingStatus = model.BookingConfirmed
	b.PaymentMethod = &method
	b.TransactionID = &transactionID
	return true, nil
}

func (s *fakeBookingStore) TryCancel(_ context.Context, id uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byID[id]
	if !ok || b.PaymentStatus != model.PaymentPending {
		return false, nil
	}
	b.PaymentStatus = model.PaymentFailed
	b.BookingStatus = model.BookingCancelled
	return true, nil
}

type fakeLedgerReader struct {
	entries []model.LedgerEntry
}

func (f *fakeLedgerReader) EntriesForSeats(_ context.Context, _ uint64, _ []uint64) ([]model.LedgerEntry, error) {
	return f.entries, nil
}

type coordCall struct {
	op      string
	seatIDs []uint64
	holder  string
}

type fakeCoordinator struct {
	mu      sync.Mutex
	calls   []coordCall
	bookErr error
}

func (f *fakeCoordinator) Book(_ context.Context, _ uint64, seatIDs []uint64, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, coordCall{op: "book", seatIDs: seatIDs})
	return f.bookErr
}

func (f *fakeCoordinator) Release(_ context.Context, _ uint64, seatIDs []uint64, holder, _ string) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, coordCall{op: "release", seatIDs: seatIDs, holder: holder})
	return seatIDs, nil
}

func (f *fakeCoordinator) ops(op string) []coordCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []coordCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type fakeShowtimes struct{ st model.Showtime }

func (f *fakeShowtimes) GetByID(_ context.Context, id uint64) (*model.Showtime, error) {
	if id != f.st.ID {
		return nil, repository.ErrShowtimeNotFound
	}
	cp := f.st
	return &cp, nil
}

type fakeSeats struct{ seats []model.Seat }

func (f *fakeSeats) GetByIDs(_ context.Context, _ []uint64) ([]model.Seat, error) {
	return f.seats, nil
}

type fakeCombos struct{ combos []model.Combo }

func (f *fakeCombos) GetByIDs(_ context.Context, _ []uint64) ([]model.Combo, error) {
	return f.combos, nil
}

type fakeVouchers struct{ v *model.Voucher }

func (f *fakeVouchers) GetByCode(_ context.Context, code string) (*model.Voucher, error) {
	if f.v == nil || f.v.Code != code {
		return nil, repository.ErrVoucherNotFound
	}
	cp := *f.v
	return &cp, nil
}

type countingReceipts struct {
	mu sync.Mutex
	n  int
}

func (r *countingReceipts) BookingConfirmed(_ context.Context, _ *model.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
}

func (r *countingReceipts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

type fixture struct {
	orch     *Orchestrator
	store    *fakeBookingStore
	coord    *fakeCoordinator
	receipts *countingReceipts
}

func reservedEntry(seatID uint64, holder string, price int64) model.LedgerEntry {
	h := holder
	exp := time.Now().UTC().Add(15 * time.Minute)
	return model.LedgerEntry{
		SeatID: seatID, Status: model.SeatReserved,
		Holder: &h, LeaseExpiresAt: &exp, PriceCents: price,
	}
}

func newFixture(entries []model.LedgerEntry, voucher *model.Voucher) *fixture {
	store := newFakeBookingStore()
	coord := &fakeCoordinator{}
	receipts := &countingReceipts{}
	orch := NewOrchestrator(
		store,
		&fakeLedgerReader{entries: entries},
		&fakeShowtimes{st: model.Showtime{
			ID: 1, MovieID: 5, BranchID: 9,
			Prices: model.PriceTable{StandardCents: 150000, VIPCents: 200000},
		}},
		&fakeSeats{seats: []model.Seat{
			{ID: 10, RowLabel: "A", SeatNumber: 1, SeatType: model.SeatTypeStandard},
			{ID: 11, RowLabel: "A", SeatNumber: 2, SeatType: model.SeatTypeVIP},
		}},
		&fakeCombos{combos: []model.Combo{
			{ID: 3, Name: "Popcorn set", PriceCents: 40000, IsActive: true},
		}},
		&fakeVouchers{v: voucher},
		coord,
		payment.NewMockGateway(),
		receipts,
	)
	return &fixture{orch: orch, store: store, coord: coord, receipts: receipts}
}

var buyer = model.Actor{ID: "user:7"}

func createInput() CreateInput {
	return CreateInput{
		ShowtimeID: 1,
		SeatIDs:    []uint64{10, 11},
		PayerName:  "Anh Tran",
		PayerEmail: "anh@example.com",
	}
}

func TestCreateSnapshotsSeatsAndTotals(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)

	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)
	assert.NotEmpty(t, b.OrderCode)
	assert.Equal(t, model.PaymentPending, b.PaymentStatus)
	require.Len(t, b.Seats, 2)
	// Prices come from the ledger snapshot, not the live price table.
	assert.Equal(t, int64(350000), b.SeatTotalCents)
	assert.Equal(t, int64(350000), b.TotalCents)
	// Creation never touches the ledger.
	assert.Empty(t, f.coord.calls)
}

func TestCreateWithCombosAndVoucher(t *testing.T) {
	voucher := &model.Voucher{
		ID: 2, Code: "WELCOME10", Kind: model.VoucherPercent, Value: 10,
		MaxDiscountCents: 50000,
		ValidFrom:        time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
		IsActive: true,
	}
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 150000),
	}, voucher)

	in := createInput()
	in.Combos = []ComboSelection{{ComboID: 3, Quantity: 2}}
	in.VoucherCode = "WELCOME10"

	b, err := f.orch.Create(context.Background(), in, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), b.SeatTotalCents)
	assert.Equal(t, int64(80000), b.ComboTotalCents)
	assert.Equal(t, int64(38000), b.DiscountCents)
	assert.Equal(t, int64(342000), b.TotalCents)
	require.NotNil(t, b.VoucherID)
}

func TestCreateRejectsVoucherBelowMinimum(t *testing.T) {
	voucher := &model.Voucher{
		ID: 2, Code: "BIGSPENDER", Kind: model.VoucherFlat, Value: 50000,
		MinPurchaseCents: 1000000,
		ValidFrom:        time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
		IsActive: true,
	}
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 150000),
	}, voucher)

	in := createInput()
	in.VoucherCode = "BIGSPENDER"
	_, err := f.orch.Create(context.Background(), in, buyer)
	assert.ErrorIs(t, err, pricing.ErrVoucherMinPurchase)
}

func TestCreateCollapsesDuplicateSeatIDs(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)

	in := createInput()
	in.SeatIDs = []uint64{10, 10, 11}

	b, err := f.orch.Create(context.Background(), in, buyer)
	require.NoError(t, err)
	require.Len(t, b.Seats, 2, "a repeated seat id is one seat, not two tickets")
	assert.Equal(t, int64(350000), b.SeatTotalCents)
}

func TestCreateRejectsUnheldSeats(t *testing.T) {
	other := "user:other"
	exp := time.Now().UTC().Add(time.Minute)
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		{SeatID: 11, Status: model.SeatReserved, Holder: &other, LeaseExpiresAt: &exp, PriceCents: 200000},
	}, nil)

	_, err := f.orch.Create(context.Background(), createInput(), buyer)
	var unavailable *SeatsUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []uint64{11}, unavailable.SeatIDs)
}

func TestCreateStaffMayBookAvailableSeats(t *testing.T) {
	staff := model.Actor{ID: "user:99", Staff: true}
	f := newFixture([]model.LedgerEntry{
		{SeatID: 10, Status: model.SeatAvailable, PriceCents: 150000},
		{SeatID: 11, Status: model.SeatAvailable, PriceCents: 200000},
	}, nil)

	_, err := f.orch.Create(context.Background(), createInput(), staff)
	require.NoError(t, err)
}

func TestConfirmFinalizesOnce(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	got, err := f.orch.Confirm(context.Background(), b.ID, buyer, "CASH", "")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, model.BookingConfirmed, got.BookingStatus)
	assert.Len(t, f.coord.ops("book"), 1)
	assert.Equal(t, 1, f.receipts.count())

	_, err = f.orch.Confirm(context.Background(), b.ID, buyer, "CASH", "")
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Len(t, f.coord.ops("book"), 1, "the ledger transition must not rerun")
}

func TestWebhookReplayIsNoOp(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	require.NoError(t, f.orch.HandleWebhook(context.Background(), b.OrderCode, payment.StatusPaid))
	require.NoError(t, f.orch.HandleWebhook(context.Background(), b.OrderCode, payment.StatusPaid))

	assert.Len(t, f.coord.ops("book"), 1)
	assert.Equal(t, 1, f.receipts.count())
}

func TestWebhookRacesDirectConfirm(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.orch.Confirm(context.Background(), b.ID, buyer, "GATEWAY", "tx1")
	}()
	go func() {
		defer wg.Done()
		_ = f.orch.HandleWebhook(context.Background(), b.OrderCode, payment.StatusPaid)
	}()
	wg.Wait()

	// Whoever wins, finalization happens exactly once.
	assert.Len(t, f.coord.ops("book"), 1)
	assert.Equal(t, 1, f.receipts.count())
}

func TestWebhookFailureCancelsAndReleases(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	require.NoError(t, f.orch.HandleWebhook(context.Background(), b.OrderCode, payment.StatusFailed))

	got, err := f.store.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, model.BookingCancelled, got.BookingStatus)

	releases := f.coord.ops("release")
	require.Len(t, releases, 1)
	assert.Empty(t, releases[0].holder, "cancellation releases on status alone")
	assert.ElementsMatch(t, []uint64{10, 11}, releases[0].seatIDs)
}

func TestCancelCompletedRejected(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)
	_, err = f.orch.Confirm(context.Background(), b.ID, buyer, "CASH", "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.orch.Cancel(context.Background(), b.ID, buyer), ErrAlreadyFinalized)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	require.NoError(t, f.orch.Cancel(context.Background(), b.ID, buyer))
	assert.ErrorIs(t, f.orch.Cancel(context.Background(), b.ID, buyer), ErrAlreadyCancelled)
	assert.Len(t, f.coord.ops("release"), 1)
}

func TestAuthorizationHidesForeignBookings(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	stranger := model.Actor{ID: "user:1337"}
	_, err = f.orch.Get(context.Background(), b.ID, stranger)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	// Staff can see and act on anyone's booking.
	staff := model.Actor{ID: "user:99", Staff: true}
	_, err = f.orch.Get(context.Background(), b.ID, staff)
	assert.NoError(t, err)
}

func TestStartPaymentOnPendingOnly(t *testing.T) {
	f := newFixture([]model.LedgerEntry{
		reservedEntry(10, buyer.ID, 150000),
		reservedEntry(11, buyer.ID, 200000),
	}, nil)
	b, err := f.orch.Create(context.Background(), createInput(), buyer)
	require.NoError(t, err)

	url, err := f.orch.StartPayment(context.Background(), b.ID, buyer)
	require.NoError(t, err)
	assert.Contains(t, url, b.OrderCode)

	_, err = f.orch.Confirm(context.Background(), b.ID, buyer, "CASH", "")
	require.NoError(t, err)
	_, err = f.orch.StartPayment(context.Background(), b.ID, buyer)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}
