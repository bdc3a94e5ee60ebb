package reservation

import (
	"context"
	"log"
	"time"

	"github.com/cineseat/ticketing/internal/repository"
)

// Reclaimer guarantees bounded seat leak through two converging paths:
// a periodic sweep over every expired lease (the safety net that works
// even after a crash or dropped connection), and a per-acquisition timer
// armed the moment a lease is granted (the fast path).  Both call the same
// idempotent Coordinator.Release, so double-firing is harmless.
type Reclaimer struct {
	coord    *Coordinator
	store    LedgerStore
	interval time.Duration
}

// NewReclaimer wires a Reclaimer.  interval is the sweep period; a lease
// with TTL T is back in AVAILABLE within one interval after T elapses.
func NewReclaimer(coord *Coordinator, store LedgerStore, interval time.Duration) *Reclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reclaimer{coord: coord, store: store, interval: interval}
}

// Schedule arms a one-shot deferred release for a freshly granted lease.
// The timer lives only in this process; if it never fires (restart,
// crash), the sweep reclaims the lease instead.  The release is
// expiry-matched: when the lease was replaced in the meantime (a select
// hold upgraded to a payment hold), the fresh lease has a future expiry
// and the stale timer finds nothing to release.
func (r *Reclaimer) Schedule(showtimeID uint64, seatIDs []uint64, holder string, ttl time.Duration) {
	time.AfterFunc(ttl, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := r.coord.ReleaseExpired(ctx, showtimeID, seatIDs, holder, "lease expired"); err != nil {
			log.Printf("reclaimer: deferred release showtime=%d failed: %v", showtimeID, err)
		}
	})
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep releases every lease whose expiry has passed, grouped per showtime
// and holder so subscribers get one event per batch.  Per-entry failures
// are logged and skipped; aborting the sweep on one bad row would defeat
// its purpose as the safety net.
func (r *Reclaimer) Sweep(ctx context.Context) {
	leases, err := r.store.ExpiredLeases(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("reclaimer: expired-lease scan failed: %v", err)
		return
	}
	if len(leases) == 0 {
		return
	}
	for _, g := range groupLeases(leases) {
		// Expiry-matched release: a seat that was re-acquired between the
		// scan and this release carries a future expiry (whoever holds it
		// now) and is skipped.
		if _, err := r.coord.ReleaseExpired(ctx, g.showtimeID, g.seatIDs, g.holder, "sweep"); err != nil {
			log.Printf("reclaimer: sweep release showtime=%d holder=%s failed: %v", g.showtimeID, g.holder, err)
		}
	}
}

type leaseGroup struct {
	showtimeID uint64
	holder     string
	seatIDs    []uint64
}

func groupLeases(leases []repository.ExpiredLease) []leaseGroup {
	type key struct {
		showtimeID uint64
		holder     string
	}
	index := make(map[key]int)
	var groups []leaseGroup
	for _, l := range leases {
		k := key{l.ShowtimeID, l.Holder}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, leaseGroup{showtimeID: l.ShowtimeID, holder: l.Holder})
		}
		groups[i].seatIDs = append(groups[i].seatIDs, l.SeatID)
	}
	return groups
}
