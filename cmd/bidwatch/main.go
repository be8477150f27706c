// bidwatch logs in, joins one auction room and prints its events. Bids are
// read from stdin.
// Usage: go run ./cmd/bidwatch --config configs/client.yaml --auction 12
//
// Commands on stdin:
//
//	<amount>   place a bid of amount won
//	next       place the minimum next bid
//	state      print the room state
//	history    print the bid history
//	quit       leave the room and exit
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bidflow/auction-client/internal/api"
	"github.com/bidflow/auction-client/internal/auth"
	"github.com/bidflow/auction-client/internal/config"
	"github.com/bidflow/auction-client/internal/connection"
	"github.com/bidflow/auction-client/internal/model"
	"github.com/bidflow/auction-client/internal/poller"
	"github.com/bidflow/auction-client/internal/room"
	"github.com/bidflow/auction-client/internal/router"
)

func main() {
	configPath := flag.String("config", "configs/client.yaml", "path to config file")
	auctionID := flag.Int64("auction", 0, "auction id to watch")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log, os.Stderr)

	if *auctionID <= 0 {
		logger.Error("--auction is required")
		os.Exit(2)
	}

	if err := run(cfg, *auctionID, logger); err != nil {
		logger.Error("bidwatch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, auctionID int64, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	)

	creds, err := auth.LoadCredentials(cfg.Auth.Email, cfg.Auth.Password)
	if err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	session := auth.NewSession(apiClient, logger)
	user, err := session.Login(ctx, *creds)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	snapshot, err := apiClient.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("load auction %d: %w", auctionID, err)
	}

	connMgr := connection.NewManager(
		connection.ManagerConfigFrom(cfg.API, cfg.Connection, apiClient.Jar()),
		logger,
	)
	if err := connMgr.Connect(ctx); err != nil {
		logger.Warn("initial websocket connect failed, retrying in background", "error", err)
	}

	rm, err := room.New(connMgr, room.Config{
		AuctionID:    strconv.FormatInt(auctionID, 10),
		UserUUID:     user.UserUUID,
		Nickname:     user.Nickname,
		PingInterval: cfg.Room.PingInterval,
	}, logger)
	if err != nil {
		return err
	}
	rm.Sync(*snapshot)
	rm.OnEvent(func(ev router.Event) { printEvent(rm, ev) })

	// A logged-out user cannot stay in a room.
	session.OnChange(func(u *model.User) {
		if u == nil {
			rm.Leave()
		}
	})

	resync := poller.New(poller.Config{
		Interval:    cfg.Room.ResyncInterval,
		Concurrency: 1,
		Timeout:     cfg.Poller.Timeout,
	}, apiClient, poller.WatchList{auctionID}, poller.SnapshotHandlerFunc(func(a model.Auction) error {
		rm.Sync(a)
		return nil
	}), logger)

	// After a reconnect the server has forgotten us: announce again and
	// refresh whatever was missed while offline.
	var wasConnected atomic.Bool
	wasConnected.Store(connMgr.Status().Connected)
	connMgr.OnStateChange(func(s connection.Status) {
		if prev := wasConnected.Swap(s.Connected); s.Connected && !prev && rm.Joined() {
			if err := rm.Announce(); err != nil {
				logger.Warn("re-announce failed", "error", err)
			}
			resync.Trigger()
		}
	})

	if err := rm.Join(ctx); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	if err := resync.Start(ctx); err != nil {
		return fmt.Errorf("start resync: %w", err)
	}

	printState(rm)
	fmt.Println("type an amount, 'next', 'state', 'history' or 'quit'")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if quit := handleCommand(rm, strings.TrimSpace(line)); quit {
				break loop
			}
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	resync.Stop(shutdownCtx)
	if err := session.Logout(shutdownCtx); err != nil {
		logger.Warn("logout failed", "error", err)
		rm.Leave()
	}
	connMgr.Stop(shutdownCtx)
	return nil
}

// handleCommand runs one stdin command and reports whether to quit.
func handleCommand(rm *room.Room, line string) bool {
	switch line {
	case "":
		return false
	case "quit", "exit":
		return true
	case "state":
		printState(rm)
		return false
	case "history":
		for _, h := range rm.History() {
			me := ""
			if h.IsMe {
				me = " (me)"
			}
			fmt.Printf("  %s  %-16s %10d%s\n", h.At.Format("15:04:05"), h.Nickname, h.Amount, me)
		}
		return false
	case "next":
		placeBid(rm, rm.NextBid())
		return false
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(line, ",", ""), 10, 64)
	if err != nil {
		fmt.Printf("unknown command %q\n", line)
		return false
	}
	placeBid(rm, amount)
	return false
}

func placeBid(rm *room.Room, amount int64) {
	err := rm.PlaceBid(amount)
	switch {
	case err == nil:
		fmt.Printf("bid of %d sent\n", amount)
	case errors.Is(err, room.ErrBidTooLow):
		fmt.Printf("bid too low: %v\n", err)
	default:
		fmt.Printf("cannot bid: %v\n", err)
	}
}

func printState(rm *room.Room) {
	s := rm.State()
	name := s.Name
	if name == "" {
		name = "auction " + s.AuctionID
	}
	fmt.Printf("[STATE] %s current=%d next=%d bids=%d participants=%d left=%s can_bid=%t\n",
		name, s.CurrentBid, s.NextBid(), s.BidCount, s.Participants, rm.TimeLeft(), s.CanBid)
}

func printEvent(rm *room.Room, ev router.Event) {
	switch ev.Kind {
	case router.KindBid:
		fmt.Printf("[BID] %s bid %d (next %d)\n", ev.Nickname, ev.Amount, rm.NextBid())
	case router.KindParticipant:
		fmt.Printf("[PARTICIPANTS] %d\n", ev.Participants)
	case router.KindRejected:
		fmt.Printf("[REJECTED] %s\n", ev.Message)
	case router.KindEnd:
		fmt.Printf("[ENDED] winner=%s bid=%d\n", ev.WinnerNickname, ev.WinningBid)
	}
}
