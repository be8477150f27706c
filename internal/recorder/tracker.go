package recorder

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bidflow/auction-client/internal/catalog"
	"github.com/bidflow/auction-client/internal/connection"
	"github.com/bidflow/auction-client/internal/model"
	"github.com/bidflow/auction-client/internal/router"
)

// Subscriber is the part of connection.Manager the tracker uses.
type Subscriber interface {
	Subscribe(destination string, handler connection.Handler) string
	Unsubscribe(id string)
}

// Config holds tracker configuration.
type Config struct {
	BufferSize int           // message channel capacity (default: 10000)
	EndGrace   time.Duration // how long an ended room stays subscribed (default: 1m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 10000,
		EndGrace:   time.Minute,
	}
}

// Stats are tracker counters.
type Stats struct {
	Rooms     int
	Forwarded uint64
	Dropped   uint64 // messages discarded because the channel was full
}

type room struct {
	subID  string
	expire *time.Timer // set once the auction has ended
}

// Tracker maintains one subscription per watched auction.
type Tracker struct {
	cfg    Config
	subs   Subscriber
	logger *slog.Logger
	out    chan connection.Message

	mu    sync.Mutex
	rooms map[int64]*room

	// outMu guards closing out against concurrent forwards.
	outMu  sync.RWMutex
	closed bool

	forwarded atomic.Uint64
	dropped   atomic.Uint64
}

// NewTracker creates a tracker with no rooms.
func NewTracker(cfg Config, subs Subscriber, logger *slog.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.EndGrace < 0 {
		cfg.EndGrace = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:    cfg,
		subs:   subs,
		logger: logger.With("component", "tracker"),
		out:    make(chan connection.Message, cfg.BufferSize),
		rooms:  make(map[int64]*room),
	}
}

// Messages returns the channel all room messages are forwarded to. It is
// closed by Close.
func (t *Tracker) Messages() <-chan connection.Message {
	return t.out
}

// Watch subscribes to the room of auctionID. It reports whether a new
// subscription was made.
func (t *Tracker) Watch(auctionID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isClosed() {
		return false
	}
	if r, ok := t.rooms[auctionID]; ok {
		// A room that came back to life is no longer due to expire.
		if r.expire != nil {
			r.expire.Stop()
			r.expire = nil
		}
		return false
	}

	dest := router.RoomDestination(strconv.FormatInt(auctionID, 10))
	t.rooms[auctionID] = &room{subID: t.subs.Subscribe(dest, t.forward)}
	t.logger.Debug("watching room", "auction_id", auctionID)
	return true
}

// Unwatch unsubscribes from the room of auctionID immediately.
func (t *Tracker) Unwatch(auctionID int64) bool {
	t.mu.Lock()
	subID, ok := t.removeLocked(auctionID)
	t.mu.Unlock()

	if ok {
		t.unsubscribe(auctionID, subID)
	}
	return ok
}

// Ended keeps the room subscribed for EndGrace, then unwatches it.
func (t *Tracker) Ended(auctionID int64) {
	if t.cfg.EndGrace == 0 {
		t.Unwatch(auctionID)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.rooms[auctionID]
	if !ok || r.expire != nil {
		return
	}
	r.expire = time.AfterFunc(t.cfg.EndGrace, func() {
		t.mu.Lock()
		cur, ok := t.rooms[auctionID]
		if !ok || cur != r {
			t.mu.Unlock()
			return
		}
		subID, _ := t.removeLocked(auctionID)
		t.mu.Unlock()
		t.unsubscribe(auctionID, subID)
	})
}

// Sync watches every auction in live and starts the end grace for tracked
// rooms that are no longer live.
func (t *Tracker) Sync(live []model.Auction) {
	want := make(map[int64]bool, len(live))
	for _, a := range live {
		want[a.AuctionID] = true
		t.Watch(a.AuctionID)
	}
	for _, id := range t.WatchedAuctions() {
		if !want[id] {
			t.Ended(id)
		}
	}
}

// Apply updates subscriptions for one catalog change.
func (t *Tracker) Apply(ch catalog.Change) {
	switch {
	case ch.NewStatus == model.StatusLive:
		t.Watch(ch.AuctionID)
	case ch.EventType == catalog.EventRemoved, ch.NewStatus == model.StatusEnded:
		t.Ended(ch.AuctionID)
	}
}

// Run applies catalog changes until ctx is done or changes is closed.
func (t *Tracker) Run(ctx context.Context, changes <-chan catalog.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			t.Apply(ch)
		}
	}
}

// WatchedAuctions returns the tracked auction ids in ascending order.
func (t *Tracker) WatchedAuctions() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]int64, 0, len(t.rooms))
	for id := range t.rooms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	n := len(t.rooms)
	t.mu.Unlock()
	return Stats{
		Rooms:     n,
		Forwarded: t.forwarded.Load(),
		Dropped:   t.dropped.Load(),
	}
}

// Close unsubscribes every room and closes the message channel.
func (t *Tracker) Close() {
	t.outMu.Lock()
	if t.closed {
		t.outMu.Unlock()
		return
	}
	t.closed = true
	close(t.out)
	t.outMu.Unlock()

	t.mu.Lock()
	subs := make(map[int64]string, len(t.rooms))
	for id := range t.rooms {
		subs[id], _ = t.removeLocked(id)
	}
	t.mu.Unlock()

	for id, subID := range subs {
		t.unsubscribe(id, subID)
	}
}

func (t *Tracker) isClosed() bool {
	t.outMu.RLock()
	defer t.outMu.RUnlock()
	return t.closed
}

// removeLocked forgets a room and returns its subscription id. The caller
// unsubscribes after releasing mu, since Unsubscribe may wait on the room's
// dispatcher.
func (t *Tracker) removeLocked(auctionID int64) (string, bool) {
	r, ok := t.rooms[auctionID]
	if !ok {
		return "", false
	}
	if r.expire != nil {
		r.expire.Stop()
	}
	delete(t.rooms, auctionID)
	return r.subID, true
}

func (t *Tracker) unsubscribe(auctionID int64, subID string) {
	t.subs.Unsubscribe(subID)
	t.logger.Debug("stopped watching room", "auction_id", auctionID)
}

// forward is the subscription handler for every room.
func (t *Tracker) forward(msg connection.Message) {
	t.outMu.RLock()
	defer t.outMu.RUnlock()

	if t.closed {
		return
	}
	select {
	case t.out <- msg:
		t.forwarded.Add(1)
	default:
		t.dropped.Add(1)
		t.logger.Warn("room message dropped, router is behind", "destination", msg.Destination)
	}
}
