package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bidflow/auction-client/internal/api"
	"github.com/bidflow/auction-client/internal/model"
)

// Config holds catalog configuration.
type Config struct {
	ReconcileInterval  time.Duration
	InitialLoadTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval:  5 * time.Second,
		InitialLoadTimeout: 30 * time.Second,
	}
}

type registryImpl struct {
	cfg    Config
	source Source
	logger *slog.Logger
	now    func() time.Time

	state *registryState

	// Serialises reconciliations from the loop and from Refresh.
	syncMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a catalog backed by source.
func NewRegistry(cfg Config, source Source, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultConfig().ReconcileInterval
	}

	return &registryImpl{
		cfg:    cfg,
		source: source,
		logger: logger.With("component", "catalog"),
		now:    time.Now,
		state:  newState(),
	}
}

// Start loads the catalog and begins reconciliation in the background.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	loadCtx := r.ctx
	if r.cfg.InitialLoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(r.ctx, r.cfg.InitialLoadTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := r.Refresh(loadCtx); err != nil {
		r.cancel()
		return fmt.Errorf("initial catalog load: %w", err)
	}

	r.logger.Info("catalog started",
		"auctions", len(r.state.auctions),
		"categories", len(r.state.categories),
		"duration", time.Since(start),
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconciliationLoop(r.ctx)
	}()
	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("catalog stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *registryImpl) Auctions() []model.Auction {
	return r.state.getAuctions()
}

func (r *registryImpl) Auction(id int64) (model.Auction, bool) {
	return r.state.getAuction(id)
}

func (r *registryImpl) Live() []model.Auction {
	return r.Browse(Filter{Status: model.StatusLive})
}

func (r *registryImpl) Categories() []model.Category {
	return r.state.getCategories()
}

func (r *registryImpl) Browse(f Filter) []model.Auction {
	return Apply(r.state.getAuctions(), f, r.now())
}

func (r *registryImpl) Changes() <-chan Change {
	return r.state.changes
}

func (r *registryImpl) LastSync() time.Time {
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	return r.state.lastSyncAt
}

func (r *registryImpl) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("catalog reconciliation failed", "error", err)
			}
		}
	}
}

// Refresh fetches auctions and categories and emits changes for new,
// removed and phase-changed auctions. Phases are re-derived from the clock
// on every pass, so an auction going live is noticed without a backend change.
func (r *registryImpl) Refresh(ctx context.Context) error {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	start := time.Now()

	auctions, err := r.source.ListAuctions(ctx, api.ListAuctionsOptions{})
	if err != nil {
		return fmt.Errorf("list auctions: %w", err)
	}

	categories, err := r.source.ListCategories(ctx)
	if err != nil {
		// The auction list is still usable without categories.
		r.logger.Warn("failed to list categories", "error", err)
		categories = nil
	}
	sortCategories(categories)

	now := r.now()
	seen := make(map[int64]struct{}, len(auctions))
	var created, changed, removed int

	r.state.mu.Lock()
	for _, a := range auctions {
		seen[a.AuctionID] = struct{}{}
		phase := a.Phase(now)
		old, existed := r.state.upsertLocked(a, phase)
		aCopy := a

		switch {
		case !existed:
			r.state.notifyChange(Change{
				AuctionID: a.AuctionID,
				EventType: EventCreated,
				NewStatus: phase,
				Auction:   &aCopy,
			})
			created++
		case old != phase:
			r.state.notifyChange(Change{
				AuctionID: a.AuctionID,
				EventType: EventStatusChange,
				OldStatus: old,
				NewStatus: phase,
				Auction:   &aCopy,
			})
			changed++
		}
	}

	for id := range r.state.auctions {
		if _, ok := seen[id]; ok {
			continue
		}
		old, _ := r.state.removeLocked(id)
		r.state.notifyChange(Change{
			AuctionID: id,
			EventType: EventRemoved,
			OldStatus: old,
		})
		removed++
	}

	if categories != nil {
		r.state.categories = categories
	}
	r.state.lastSyncAt = now
	total := len(r.state.auctions)
	r.state.mu.Unlock()

	if created > 0 || changed > 0 || removed > 0 {
		r.logger.Info("catalog changes",
			"created", created,
			"changed", changed,
			"removed", removed,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("catalog reconciled",
			"total_auctions", total,
			"duration", time.Since(start),
		)
	}
	return nil
}
