package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bidflow/auction-client/internal/model"
)

// WatchSource provides the auction ids to refresh.
type WatchSource interface {
	WatchedAuctions() []int64
}

// WatchList is a static WatchSource.
type WatchList []int64

func (w WatchList) WatchedAuctions() []int64 { return w }

// Fetcher loads one auction snapshot.
type Fetcher interface {
	GetAuction(ctx context.Context, auctionID int64) (*model.Auction, error)
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot model.Auction) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(model.Auction) error

func (f SnapshotHandlerFunc) HandleSnapshot(s model.Auction) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 30s)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// CycleStats summarises one poll cycle.
type CycleStats struct {
	Auctions int
	Fetched  int64
	Errors   int64
	Duration time.Duration
}

// Poller periodically fetches auction snapshots via REST.
type Poller struct {
	cfg     Config
	client  Fetcher
	watched WatchSource
	handler SnapshotHandler
	logger  *slog.Logger

	// trigger requests an out-of-band cycle.
	trigger chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client Fetcher, watched WatchSource, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		watched: watched,
		handler: handler,
		logger:  logger.With("component", "poller"),
		trigger: make(chan struct{}, 1),
	}
}

// Start begins the polling loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger asks the running poller for a cycle now. Requests made while one
// is already pending are coalesced.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.PollAll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollAll(p.ctx)
		case <-p.trigger:
			p.PollAll(p.ctx)
		}
	}
}

// PollAll fetches every watched auction with bounded concurrency. Failures
// are logged per auction and do not abort the cycle.
func (p *Poller) PollAll(ctx context.Context) CycleStats {
	start := time.Now()

	ids := p.watched.WatchedAuctions()
	if len(ids) == 0 {
		p.logger.Debug("no watched auctions to poll")
		return CycleStats{}
	}

	var fetched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.pollAuction(gctx, id); err != nil {
				p.logger.Warn("failed to poll auction",
					"auction_id", id,
					"err", err,
				)
				failed.Add(1)
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	g.Wait()

	stats := CycleStats{
		Auctions: len(ids),
		Fetched:  fetched.Load(),
		Errors:   failed.Load(),
		Duration: time.Since(start),
	}
	p.logger.Debug("poll cycle complete",
		"auctions", stats.Auctions,
		"fetched", stats.Fetched,
		"errors", stats.Errors,
		"duration", stats.Duration,
	)
	return stats
}

func (p *Poller) pollAuction(ctx context.Context, id int64) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	auction, err := p.client.GetAuction(ctx, id)
	if err != nil {
		return err
	}

	if p.handler != nil {
		return p.handler.HandleSnapshot(*auction)
	}
	return nil
}
