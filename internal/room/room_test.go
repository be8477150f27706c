package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidflow/auction-client/internal/connection"
	"github.com/bidflow/auction-client/internal/model"
	"github.com/bidflow/auction-client/internal/router"
)

type sent struct {
	destination string
	payload     any
}

// fakeTransport records publishes and lets tests deliver room messages.
type fakeTransport struct {
	mu           sync.Mutex
	handlers     map[string]connection.Handler
	destinations map[string]string
	unsubscribed []string
	sends        []sent
	sendErr      error
	nextID       int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers:     make(map[string]connection.Handler),
		destinations: make(map[string]string),
	}
}

func (f *fakeTransport) Subscribe(destination string, handler connection.Handler) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("sub-%d", f.nextID)
	f.handlers[id] = handler
	f.destinations[id] = destination
	return id
}

func (f *fakeTransport) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, id)
	f.unsubscribed = append(f.unsubscribed, id)
}

func (f *fakeTransport) Send(destination string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, sent{destination: destination, payload: payload})
	return nil
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeTransport) sentTo(destination string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, s := range f.sends {
		if s.destination == destination {
			out = append(out, s.payload)
		}
	}
	return out
}

// deliver invokes every live handler with body.
func (f *fakeTransport) deliver(t *testing.T, body string) {
	t.Helper()
	f.mu.Lock()
	var handlers []connection.Handler
	var dests []string
	for id, h := range f.handlers {
		handlers = append(handlers, h)
		dests = append(dests, f.destinations[id])
	}
	f.mu.Unlock()

	for i, h := range handlers {
		h(connection.Message{Destination: dests[i], Body: []byte(body), ReceivedAt: time.Now()})
	}
}

func newJoinedRoom(t *testing.T, cfg Config) (*Room, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	if cfg.AuctionID == "" {
		cfg.AuctionID = "7"
	}
	if cfg.UserUUID == "" {
		cfg.UserUUID = "me-uuid"
	}
	if cfg.Nickname == "" {
		cfg.Nickname = "me"
	}
	r, err := New(tr, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, r.Join(ctx))
	t.Cleanup(r.Leave)
	return r, tr
}

func snapshot() model.Auction {
	return model.Auction{
		AuctionID:   7,
		ProductName: "Camera",
		StartPrice:  10000,
		CurrentBid:  12000,
		MinBid:      500,
		EndTime:     time.Now().Add(time.Hour).Format(time.RFC3339),
	}
}

func TestNew_RequiresAuctionID(t *testing.T) {
	_, err := New(newFakeTransport(), Config{}, nil)
	assert.Error(t, err)
}

func TestState_NextBid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  int64
	}{
		{"current bid plus increment", State{CurrentBid: 12000, StartPrice: 10000, MinBid: 500}, 12500},
		{"start price before any bid", State{StartPrice: 10000, MinBid: 500}, 10500},
		{"default increment", State{CurrentBid: 12000}, 13000},
		{"nothing known", State{}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.NextBid())
		})
	}
}

func TestRoom_JoinAndLeave(t *testing.T) {
	tr := newFakeTransport()
	r, err := New(tr, Config{AuctionID: "7", UserUUID: "me-uuid", PingInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	require.NoError(t, r.Join(context.Background()))
	require.NoError(t, r.Join(context.Background()))
	assert.True(t, r.Joined())

	tr.mu.Lock()
	require.Len(t, tr.destinations, 1)
	for _, dest := range tr.destinations {
		assert.Equal(t, "/sub/auction/7", dest)
	}
	tr.mu.Unlock()

	joins := tr.sentTo(DestJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, model.ParticipantMessage{AuctionID: "7", UserUUID: "me-uuid"}, joins[0])

	require.Eventually(t, func() bool { return len(tr.sentTo(DestPing)) >= 2 }, time.Second, 5*time.Millisecond)

	r.Leave()
	r.Leave()
	assert.False(t, r.Joined())
	assert.Len(t, tr.sentTo(DestLeave), 1)
	assert.Len(t, tr.unsubscribed, 1)

	pings := len(tr.sentTo(DestPing))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, pings, len(tr.sentTo(DestPing)), "ping loop should stop after Leave")

	assert.ErrorIs(t, r.Announce(), ErrNotJoined)
}

func TestRoom_JoinAnnouncementFailureIsNotFatal(t *testing.T) {
	tr := newFakeTransport()
	tr.setSendErr(connection.ErrNotConnected)

	r, err := New(tr, Config{AuctionID: "7"}, nil)
	require.NoError(t, err)
	require.NoError(t, r.Join(context.Background()))
	defer r.Leave()

	assert.ErrorIs(t, r.Announce(), connection.ErrNotConnected)

	tr.setSendErr(nil)
	require.NoError(t, r.Announce())
	assert.Len(t, tr.sentTo(DestJoin), 1)
}

func TestRoom_PlaceBidGuards(t *testing.T) {
	t.Run("not joined", func(t *testing.T) {
		r, err := New(newFakeTransport(), Config{AuctionID: "7"}, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, r.PlaceBid(50000), ErrNotJoined)
	})

	t.Run("not synced", func(t *testing.T) {
		r, _ := newJoinedRoom(t, Config{})
		assert.ErrorIs(t, r.PlaceBid(50000), ErrNotSynced)
	})

	t.Run("too low", func(t *testing.T) {
		r, tr := newJoinedRoom(t, Config{})
		r.Sync(snapshot())

		err := r.PlaceBid(12499)
		assert.ErrorIs(t, err, ErrBidTooLow)
		assert.Contains(t, err.Error(), "12500")
		assert.Empty(t, tr.sentTo(DestBid))
	})

	t.Run("pending", func(t *testing.T) {
		r, tr := newJoinedRoom(t, Config{})
		r.Sync(snapshot())

		require.NoError(t, r.PlaceBid(12500))
		assert.ErrorIs(t, r.PlaceBid(13000), ErrBidPending)

		bids := tr.sentTo(DestBid)
		require.Len(t, bids, 1)
		assert.Equal(t, model.BidRequest{AuctionID: "7", Amount: 12500}, bids[0])
	})

	t.Run("already highest", func(t *testing.T) {
		r, _ := newJoinedRoom(t, Config{})
		a := snapshot()
		a.HighestBidderUUID = "me-uuid"
		r.Sync(a)
		assert.ErrorIs(t, r.PlaceBid(20000), ErrAlreadyHighest)
	})

	t.Run("ended by time", func(t *testing.T) {
		r, _ := newJoinedRoom(t, Config{})
		a := snapshot()
		a.EndTime = time.Now().Add(-time.Minute).Format(time.RFC3339)
		r.Sync(a)
		assert.ErrorIs(t, r.PlaceBid(20000), ErrAuctionEnded)
	})

	t.Run("ended by event", func(t *testing.T) {
		r, tr := newJoinedRoom(t, Config{})
		r.Sync(snapshot())
		tr.deliver(t, `{"winnerNickname":"bob","winningBid":30000}`)
		assert.ErrorIs(t, r.PlaceBid(40000), ErrAuctionEnded)
	})

	t.Run("send failure restores bidding", func(t *testing.T) {
		r, tr := newJoinedRoom(t, Config{})
		r.Sync(snapshot())
		tr.setSendErr(connection.ErrNotConnected)

		assert.ErrorIs(t, r.PlaceBid(12500), connection.ErrNotConnected)
		assert.True(t, r.State().CanBid)
	})
}

func TestRoom_CanBidRestoredByRejection(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})
	r.Sync(snapshot())

	require.NoError(t, r.PlaceBid(12500))
	assert.False(t, r.State().CanBid)

	tr.deliver(t, `{"message":"입찰 실패: 이미 더 높은 입찰이 있습니다"}`)

	state := r.State()
	assert.True(t, state.CanBid)
	assert.Equal(t, "입찰 실패: 이미 더 높은 입찰이 있습니다", state.LastRejection)
	require.NoError(t, r.PlaceBid(12500))
}

func TestRoom_CanBidRestoredByOtherBidder(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})
	r.Sync(snapshot())

	require.NoError(t, r.PlaceBid(12500))

	// Our own bid being accepted keeps bidding locked.
	tr.deliver(t, `{"nickname":"me","userUUID":"me-uuid","currentBid":12500}`)
	state := r.State()
	assert.False(t, state.CanBid)
	assert.Equal(t, "me-uuid", state.HighestBidderUUID)
	assert.ErrorIs(t, r.PlaceBid(20000), ErrBidPending)

	tr.deliver(t, `{"nickname":"bob","userUUID":"bob-uuid","currentBid":13000}`)
	state = r.State()
	assert.True(t, state.CanBid)
	assert.Equal(t, int64(13000), state.CurrentBid)
	assert.Equal(t, "bob", state.HighestBidderNickname)
	assert.Equal(t, int64(13500), r.NextBid())
	assert.Equal(t, 2, state.BidCount)

	require.NoError(t, r.PlaceBid(13500))
}

func TestRoom_HistorySkipsRepeatedAmounts(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})

	tr.deliver(t, `{"nickname":"bob","userUUID":"bob-uuid","currentBid":13000}`)
	tr.deliver(t, `{"nickname":"bob","userUUID":"bob-uuid","currentBid":13000}`)
	tr.deliver(t, `{"nickname":"me","userUUID":"me-uuid","currentBid":14000}`)

	history := r.History()
	require.Len(t, history, 2)
	assert.Equal(t, int64(14000), history[0].Amount)
	assert.True(t, history[0].IsMe)
	assert.Equal(t, int64(13000), history[1].Amount)
	assert.False(t, history[1].IsMe)
	assert.Equal(t, 3, r.State().BidCount)
}

func TestRoom_HistoryIsBounded(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{MaxHistory: 3})

	for _, amount := range []string{"1000", "2000", "3000", "4000", "5000"} {
		tr.deliver(t, `{"nickname":"bob","currentBid":`+amount+`}`)
	}

	history := r.History()
	require.Len(t, history, 3)
	assert.Equal(t, int64(5000), history[0].Amount)
	assert.Equal(t, int64(3000), history[2].Amount)
}

func TestRoom_ParticipantsAndListeners(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})

	var mu sync.Mutex
	var kinds []router.Kind
	r.OnEvent(func(ev router.Event) {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	assert.False(t, r.State().HasParticipants)

	tr.deliver(t, `{"participantCount":5,"nickname":"bob","currentBid":13000}`)
	tr.deliver(t, `{"participantCount":0}`)
	tr.deliver(t, `{"nickname":"System","currentBid":13000}`)

	state := r.State()
	assert.True(t, state.HasParticipants)
	assert.Equal(t, int64(0), state.Participants)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []router.Kind{router.KindParticipant, router.KindBid, router.KindParticipant}, kinds)
}

func TestRoom_EndEvent(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})

	tr.deliver(t, `{"auctionId":7,"winnerNickname":"bob","winningBid":30000}`)

	state := r.State()
	assert.True(t, state.Ended)
	assert.False(t, state.CanBid)
	assert.Equal(t, Result{WinnerNickname: "bob", WinningBid: 30000}, state.Result)
}

func TestRoom_SyncKeepsHigherSocketBid(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})

	tr.deliver(t, `{"nickname":"bob","userUUID":"bob-uuid","currentBid":15000}`)
	r.Sync(snapshot())

	state := r.State()
	assert.True(t, state.Synced)
	assert.Equal(t, "Camera", state.Name)
	assert.Equal(t, int64(15000), state.CurrentBid)
	assert.Equal(t, "bob-uuid", state.HighestBidderUUID)
	assert.Equal(t, int64(15500), state.NextBid())
}

func TestRoom_TimeLeft(t *testing.T) {
	r, _ := newJoinedRoom(t, Config{})
	assert.Equal(t, "", r.TimeLeft())

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	a := snapshot()
	a.EndTime = base.Add(90 * time.Second).Format(time.RFC3339)
	r.Sync(a)
	assert.Equal(t, "1m 30s", r.TimeLeft())
}

func TestRoom_BidPayloadShape(t *testing.T) {
	r, tr := newJoinedRoom(t, Config{})
	r.Sync(snapshot())
	require.NoError(t, r.PlaceBid(12500))

	body, err := json.Marshal(tr.sentTo(DestBid)[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"auctionId":"7","amount":12500}`, string(body))
}
