package catalog

import (
	"context"
	"time"

	"github.com/bidflow/auction-client/internal/api"
	"github.com/bidflow/auction-client/internal/model"
)

// ChangeBufferSize is the capacity of the Change channel.
const ChangeBufferSize = 1000

// Change event types.
const (
	EventCreated      = "created"
	EventStatusChange = "status_change"
	EventRemoved      = "removed"
)

// Source is the part of the REST client the catalog reads from.
type Source interface {
	ListAuctions(ctx context.Context, opts api.ListAuctionsOptions) ([]model.Auction, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// Registry keeps an in-memory view of the auction catalog.
type Registry interface {
	// Start performs the initial load and begins periodic reconciliation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// Refresh reconciles against the backend now.
	Refresh(ctx context.Context) error

	// Auctions returns every known auction ordered by id.
	Auctions() []model.Auction

	// Auction returns a single auction.
	Auction(id int64) (model.Auction, bool)

	// Live returns auctions that are currently accepting bids.
	Live() []model.Auction

	// Categories returns the known categories ordered by sort order.
	Categories() []model.Category

	// Browse applies f to the catalog.
	Browse(f Filter) []model.Auction

	// Changes returns a channel of catalog changes. Rooms are joined and
	// left from it.
	Changes() <-chan Change

	// LastSync returns the time of the last successful reconciliation.
	LastSync() time.Time
}

// Change is an auction appearing, disappearing or changing phase.
type Change struct {
	AuctionID int64
	EventType string              // EventCreated, EventStatusChange, EventRemoved
	OldStatus model.AuctionStatus // for status_change and removed
	NewStatus model.AuctionStatus
	Auction   *model.Auction // nil for removed
}
