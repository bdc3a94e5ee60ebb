// Package notifier fans ledger-change events out to viewers of a showtime.
// Events travel over a Redis pub/sub channel per showtime so that every
// service instance sees every transition; each instance keeps a local
// subscriber table purely for delivering to its own connected clients.
// Delivery is at-least-once and best-effort: the ledger remains the source
// of truth and clients reconcile by re-fetching the seat map.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types mirror the coordinator transitions that produce them.
const (
	EventSelecting = "selecting"
	EventReserved  = "reserved"
	EventReleased  = "released"
	EventBooked    = "booked"
)

// Event is the payload broadcast to viewers of a showtime.
type Event struct {
	Type      string    `json:"type"`
	SeatIDs   []uint64  `json:"seat_ids"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is the sink the coordinator publishes transitions to.
type Publisher interface {
	Publish(ctx context.Context, showtimeID uint64, ev Event)
}

const channelPrefix = "seat_events:"

func channelFor(showtimeID uint64) string {
	return channelPrefix + strconv.FormatUint(showtimeID, 10)
}

// Notifier implements Publisher on top of Redis pub/sub.  When constructed
// without a Redis client (degraded mode, mirroring how the rest of the
// service treats an unreachable Redis) it falls back to local-only
// delivery, which keeps a single instance fully functional.
//
// The subscriber map is per-instance ephemeral bookkeeping for fan-out
// only; ledger correctness never depends on it and it starts empty after a
// restart.
type Notifier struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[uint64]map[chan Event]struct{}
}

// New constructs a Notifier.  rdb may be nil.
func New(rdb *redis.Client) *Notifier {
	return &Notifier{
		rdb:  rdb,
		subs: make(map[uint64]map[chan Event]struct{}),
	}
}

// Publish broadcasts an event for a showtime.  Errors are logged, never
// returned: a failed broadcast must not fail the ledger transition that
// caused it.
func (n *Notifier) Publish(ctx context.Context, showtimeID uint64, ev Event) {
	if n.rdb == nil {
		n.deliverLocal(showtimeID, ev)
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notifier: marshal event failed: %v", err)
		return
	}
	if err := n.rdb.Publish(ctx, channelFor(showtimeID), body).Err(); err != nil {
		log.Printf("notifier: publish showtime=%d failed: %v", showtimeID, err)
		// Deliver locally anyway so this instance's viewers are not blind.
		n.deliverLocal(showtimeID, ev)
	}
}

// Subscribe registers a local viewer of a showtime and returns the event
// channel plus a cancel function.  The channel is buffered; events that
// cannot be delivered in time are dropped, since subscribers re-sync from
// the seat map.
func (n *Notifier) Subscribe(showtimeID uint64) (<-chan Event, func()) {
	ch := make(chan Event, 16)
	n.mu.Lock()
	set, ok := n.subs[showtimeID]
	if !ok {
		set = make(map[chan Event]struct{})
		n.subs[showtimeID] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if set, ok := n.subs[showtimeID]; ok {
			if _, present := set[ch]; present {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(n.subs, showtimeID)
			}
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// Run consumes the Redis pattern subscription and fans messages out to
// local subscribers until the context is cancelled.  Without Redis there
// is nothing to consume; Publish already delivers locally.
func (n *Notifier) Run(ctx context.Context) {
	if n.rdb == nil {
		<-ctx.Done()
		return
	}
	sub := n.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = sub.Close() }()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			showtimeID, err := showtimeFromChannel(msg.Channel)
			if err != nil {
				log.Printf("notifier: %v", err)
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("notifier: unmarshal event failed: %v", err)
				continue
			}
			n.deliverLocal(showtimeID, ev)
		}
	}
}

func (n *Notifier) deliverLocal(showtimeID uint64, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[showtimeID] {
		select {
		case ch <- ev:
		default: // slow subscriber; drop and let it re-sync
		}
	}
}

func showtimeFromChannel(channel string) (uint64, error) {
	raw := strings.TrimPrefix(channel, channelPrefix)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected channel %q", channel)
	}
	return id, nil
}
