package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bidflow/auction-client/internal/api"
	"github.com/bidflow/auction-client/internal/model"
)

func newAuctionServer(t *testing.T, delay time.Duration, inFlight, maxInFlight *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inFlight != nil {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				cur := maxInFlight.Load()
				if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
					break
				}
			}
		}
		if delay > 0 {
			time.Sleep(delay)
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/api/auctions/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id == 404 {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"msg": "auction not found"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": model.Auction{AuctionID: id, CurrentBid: id * 1000},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPoller_PollAll(t *testing.T) {
	server := newAuctionServer(t, 0, nil, nil)
	client := api.NewClient(server.URL+"/api", api.WithTimeout(5*time.Second))

	var bids atomic.Int64
	handler := SnapshotHandlerFunc(func(a model.Auction) error {
		bids.Add(a.CurrentBid)
		return nil
	})

	cfg := Config{Interval: time.Hour, Concurrency: 10, Timeout: 5 * time.Second}
	p := New(cfg, client, WatchList{1, 2, 3, 404}, handler, nil)

	stats := p.PollAll(context.Background())

	if stats.Auctions != 4 || stats.Fetched != 3 || stats.Errors != 1 {
		t.Errorf("stats = %+v, want 4 auctions, 3 fetched, 1 error", stats)
	}
	if got := bids.Load(); got != 6000 {
		t.Errorf("sum of current bids = %d, want 6000", got)
	}
}

func TestPoller_NoWatchedAuctions(t *testing.T) {
	p := New(DefaultConfig(), nil, WatchList(nil), nil, nil)
	if stats := p.PollAll(context.Background()); stats.Auctions != 0 {
		t.Errorf("stats = %+v, want empty", stats)
	}
}

func TestPoller_StartStop(t *testing.T) {
	server := newAuctionServer(t, 0, nil, nil)
	client := api.NewClient(server.URL + "/api")

	polled := make(chan int64, 10)
	handler := SnapshotHandlerFunc(func(a model.Auction) error {
		polled <- a.AuctionID
		return nil
	})

	p := New(Config{Interval: time.Hour, Concurrency: 2, Timeout: time.Second}, client, WatchList{9}, handler, nil)

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case id := <-polled:
		if id != 9 {
			t.Errorf("polled %d, want 9", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate poll on start")
	}

	p.Trigger()
	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("Trigger did not start a cycle")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestPoller_Concurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	server := newAuctionServer(t, 20*time.Millisecond, &inFlight, &maxInFlight)
	client := api.NewClient(server.URL + "/api")

	ids := make(WatchList, 12)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	p := New(Config{Interval: time.Hour, Concurrency: 3, Timeout: time.Second}, client, ids, nil, nil)
	stats := p.PollAll(context.Background())

	if stats.Fetched != 12 {
		t.Errorf("Fetched = %d, want 12", stats.Fetched)
	}
	if got := maxInFlight.Load(); got > 3 {
		t.Errorf("max concurrent requests = %d, want <= 3", got)
	}
}
