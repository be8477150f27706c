package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bidflow/auction-client/internal/connection"
	"github.com/bidflow/auction-client/internal/model"
	"github.com/bidflow/auction-client/internal/router"
)

// Publish destinations.
const (
	DestBid   = "/app/auction/bid"
	DestJoin  = "/app/auction/participant/join"
	DestLeave = "/app/auction/participant/leave"
	DestPing  = "/app/auction/participant/ping"
)

// DefaultPingInterval keeps the participant registration alive.
const DefaultPingInterval = 30 * time.Second

// DefaultMaxHistory bounds the in-memory bid history.
const DefaultMaxHistory = 200

var (
	ErrNotJoined      = errors.New("room not joined")
	ErrNotSynced      = errors.New("auction details not loaded")
	ErrAuctionEnded   = errors.New("auction has ended")
	ErrBidPending     = errors.New("previous bid still pending")
	ErrAlreadyHighest = errors.New("already the highest bidder")
	ErrBidTooLow      = errors.New("bid below minimum")
)

// Transport is the part of connection.Manager a room uses.
type Transport interface {
	Subscribe(destination string, handler connection.Handler) string
	Unsubscribe(id string)
	Send(destination string, payload any) error
}

// Listener receives every classified room event after state is updated.
type Listener func(router.Event)

// Config identifies the room and the user in it.
type Config struct {
	AuctionID    string
	UserUUID     string
	Nickname     string
	PingInterval time.Duration
	MaxHistory   int
}

// Result is the outcome announced when an auction ends.
type Result struct {
	WinnerNickname string
	WinningBid     int64
}

// HistoryEntry is one accepted bid seen in the room.
type HistoryEntry struct {
	Nickname string
	Amount   int64
	IsMe     bool
	At       time.Time
}

// State is a snapshot of the room.
type State struct {
	AuctionID             string
	Name                  string
	StartPrice            int64
	CurrentBid            int64
	MinBid                int64
	EndTime               time.Time
	HighestBidderUUID     string
	HighestBidderNickname string

	// Participants is valid once HasParticipants is set.
	Participants    int64
	HasParticipants bool

	BidCount      int
	CanBid        bool
	Synced        bool
	Ended         bool
	Result        Result
	LastRejection string
}

// NextBid is (currentBid || startPrice || 0) + (minBid || 1000).
func (s State) NextBid() int64 {
	price := s.CurrentBid
	if price <= 0 {
		price = s.StartPrice
	}
	if price < 0 {
		price = 0
	}
	inc := s.MinBid
	if inc <= 0 {
		inc = model.DefaultMinBid
	}
	return price + inc
}

// Room is one joined auction room.
type Room struct {
	cfg       Config
	transport Transport
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	state     State
	history   []HistoryEntry
	listeners []Listener
	subID     string
	joined    bool
	stopPing  chan struct{}
	pingDone  chan struct{}
}

// New creates a room for cfg.AuctionID. Call Join to start receiving events.
func New(transport Transport, cfg Config, logger *slog.Logger) (*Room, error) {
	if cfg.AuctionID == "" {
		return nil, errors.New("auction id is required")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Room{
		cfg:       cfg,
		transport: transport,
		logger:    logger.With("component", "room", "auction_id", cfg.AuctionID),
		now:       time.Now,
		state: State{
			AuctionID: cfg.AuctionID,
			CanBid:    true,
		},
	}, nil
}

// AuctionID returns the room's auction id.
func (r *Room) AuctionID() string {
	return r.cfg.AuctionID
}

// OnEvent registers a listener.
func (r *Room) OnEvent(fn Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Join subscribes to the room, announces the user and starts the ping loop.
// The ping loop runs until Leave or until ctx is done. Joining twice is a
// no-op. A failed join announcement is logged; call Announce after the
// connection comes back.
func (r *Room) Join(ctx context.Context) error {
	r.mu.Lock()
	if r.joined {
		r.mu.Unlock()
		return nil
	}
	subID := r.transport.Subscribe(router.RoomDestination(r.cfg.AuctionID), r.handle)
	r.subID = subID
	r.joined = true
	r.stopPing = make(chan struct{})
	r.pingDone = make(chan struct{})
	go r.pingLoop(ctx, r.stopPing, r.pingDone)
	r.mu.Unlock()

	r.logger.Info("joined auction room", "subscription_id", subID)

	if err := r.Announce(); err != nil {
		r.logger.Warn("join announcement failed", "error", err)
	}
	return nil
}

// Announce publishes the participant join message.
func (r *Room) Announce() error {
	if !r.Joined() {
		return ErrNotJoined
	}
	return r.transport.Send(DestJoin, r.participant())
}

// Leave publishes the leave message, unsubscribes and stops the ping loop.
// Leaving a room that is not joined is a no-op.
func (r *Room) Leave() {
	r.mu.Lock()
	if !r.joined {
		r.mu.Unlock()
		return
	}
	r.joined = false
	subID := r.subID
	r.subID = ""
	close(r.stopPing)
	pingDone := r.pingDone
	r.mu.Unlock()

	if err := r.transport.Send(DestLeave, r.participant()); err != nil {
		r.logger.Debug("leave announcement failed", "error", err)
	}
	r.transport.Unsubscribe(subID)
	<-pingDone

	r.logger.Info("left auction room")
}

// Joined reports whether the room is joined.
func (r *Room) Joined() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joined
}

// Sync seeds the room from a REST snapshot. A snapshot never lowers the
// current bid below one already seen on the socket.
func (r *Room) Sync(a model.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.state
	s.Name = a.DisplayName()
	s.StartPrice = a.StartPrice
	s.MinBid = a.MinBid
	if end, err := model.ParseTime(a.EndTime); err == nil {
		s.EndTime = end
	}
	if a.CurrentBid >= s.CurrentBid {
		s.CurrentBid = a.CurrentBid
		if a.HighestBidderUUID != "" || a.HighestBidderNickname != "" {
			s.HighestBidderUUID = a.HighestBidderUUID
			s.HighestBidderNickname = a.HighestBidderNickname
		}
	}
	s.Synced = true
}

// State returns a snapshot of the room state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// NextBid returns the minimum acceptable next bid.
func (r *Room) NextBid() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.NextBid()
}

// TimeLeft formats the time remaining, or "" before the end time is known.
func (r *Room) TimeLeft() string {
	r.mu.Lock()
	end := r.state.EndTime
	r.mu.Unlock()
	if end.IsZero() {
		return ""
	}
	return TimeLeft(end, r.now())
}

// History returns accepted bids, newest first.
func (r *Room) History() []HistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]HistoryEntry, len(r.history))
	for i, e := range r.history {
		out[len(r.history)-1-i] = e
	}
	return out
}

// PlaceBid publishes a bid after the client-side checks pass. Further bids
// are refused until the backend answers with a rejection or another user
// outbids.
func (r *Room) PlaceBid(amount int64) error {
	r.mu.Lock()
	if err := r.checkBidLocked(amount); err != nil {
		r.mu.Unlock()
		return err
	}
	r.state.CanBid = false
	r.mu.Unlock()

	err := r.transport.Send(DestBid, model.BidRequest{AuctionID: r.cfg.AuctionID, Amount: amount})
	if err != nil {
		r.mu.Lock()
		r.state.CanBid = true
		r.mu.Unlock()
		return fmt.Errorf("publish bid: %w", err)
	}

	r.logger.Info("bid sent", "amount", amount)
	return nil
}

func (r *Room) checkBidLocked(amount int64) error {
	s := r.state
	switch {
	case !r.joined:
		return ErrNotJoined
	case !s.Synced:
		return ErrNotSynced
	case s.Ended || (!s.EndTime.IsZero() && !r.now().Before(s.EndTime)):
		return ErrAuctionEnded
	case !s.CanBid:
		return ErrBidPending
	case r.cfg.UserUUID != "" && s.HighestBidderUUID == r.cfg.UserUUID:
		return ErrAlreadyHighest
	case amount < s.NextBid():
		return fmt.Errorf("%w: minimum is %d", ErrBidTooLow, s.NextBid())
	}
	return nil
}

// handle is the subscription callback.
func (r *Room) handle(msg connection.Message) {
	events, err := router.ClassifyMessage(msg.Body, msg.Destination, msg.ReceivedAt)
	if err != nil {
		r.logger.Debug("dropping room message", "error", err)
		return
	}

	for _, ev := range events {
		r.apply(ev)

		r.mu.Lock()
		listeners := append([]Listener(nil), r.listeners...)
		r.mu.Unlock()
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// apply folds one event into the room state.
func (r *Room) apply(ev router.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &r.state
	switch ev.Kind {
	case router.KindParticipant:
		s.Participants = ev.Participants
		s.HasParticipants = true

	case router.KindEnd:
		s.Ended = true
		s.CanBid = false
		s.Result = Result{WinnerNickname: ev.WinnerNickname, WinningBid: ev.WinningBid}
		r.logger.Info("auction ended", "winner", ev.WinnerNickname, "winning_bid", ev.WinningBid)

	case router.KindRejected:
		s.CanBid = true
		s.LastRejection = ev.Message
		r.logger.Info("bid rejected", "message", ev.Message)

	case router.KindBid:
		isMe := r.isMe(ev)
		r.recordLocked(ev, isMe)
		s.CurrentBid = ev.Amount
		s.HighestBidderUUID = ev.UserUUID
		s.HighestBidderNickname = ev.Nickname
		s.BidCount++
		if !isMe {
			s.CanBid = true
		}
	}
}

// recordLocked appends a bid to history unless its amount is already there.
func (r *Room) recordLocked(ev router.Event, isMe bool) {
	for _, e := range r.history {
		if e.Amount == ev.Amount {
			return
		}
	}

	at := ev.ReceivedAt
	if at.IsZero() {
		at = r.now()
	}
	r.history = append(r.history, HistoryEntry{
		Nickname: ev.Nickname,
		Amount:   ev.Amount,
		IsMe:     isMe,
		At:       at,
	})
	if over := len(r.history) - r.cfg.MaxHistory; over > 0 {
		r.history = append(r.history[:0:0], r.history[over:]...)
	}
}

// isMe matches by UUID when the event carries one, else by nickname.
func (r *Room) isMe(ev router.Event) bool {
	if ev.UserUUID != "" && r.cfg.UserUUID != "" {
		return ev.UserUUID == r.cfg.UserUUID
	}
	return r.cfg.Nickname != "" && ev.Nickname == r.cfg.Nickname
}

func (r *Room) participant() model.ParticipantMessage {
	return model.ParticipantMessage{AuctionID: r.cfg.AuctionID, UserUUID: r.cfg.UserUUID}
}

// pingLoop keeps the participant registration alive until stop or ctx.
func (r *Room) pingLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := r.transport.Send(DestPing, r.participant()); err != nil {
				r.logger.Debug("ping failed", "error", err)
			}
		}
	}
}

