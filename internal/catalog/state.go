package catalog

import (
	"sort"
	"sync"
	"time"

	"github.com/bidflow/auction-client/internal/model"
)

// registryState holds the thread-safe catalog cache.
type registryState struct {
	mu sync.RWMutex

	// All known auctions by id.
	auctions map[int64]*model.Auction

	// Phase of each auction as of the last reconciliation.
	phases map[int64]model.AuctionStatus

	categories []model.Category

	lastSyncAt time.Time

	changes chan Change
}

func newState() *registryState {
	return &registryState{
		auctions: make(map[int64]*model.Auction),
		phases:   make(map[int64]model.AuctionStatus),
		changes:  make(chan Change, ChangeBufferSize),
	}
}

func (s *registryState) getAuction(id int64) (model.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, false
	}
	return *a, true
}

// getAuctions returns a copy of all auctions ordered by id.
func (s *registryState) getAuctions() []model.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		result = append(result, *a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AuctionID < result[j].AuctionID })
	return result
}

func (s *registryState) getCategories() []model.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Category(nil), s.categories...)
}

// upsertLocked stores a copy of a and returns its previous phase.
// Caller must hold the write lock.
func (s *registryState) upsertLocked(a model.Auction, phase model.AuctionStatus) (old model.AuctionStatus, existed bool) {
	old, existed = s.phases[a.AuctionID]
	aCopy := a
	s.auctions[a.AuctionID] = &aCopy
	s.phases[a.AuctionID] = phase
	return old, existed
}

// removeLocked deletes an auction. Caller must hold the write lock.
func (s *registryState) removeLocked(id int64) (model.AuctionStatus, bool) {
	phase, ok := s.phases[id]
	if !ok {
		return "", false
	}
	delete(s.auctions, id)
	delete(s.phases, id)
	return phase, true
}

// notifyChange sends without blocking, dropping the oldest change when full.
func (s *registryState) notifyChange(change Change) {
	select {
	case s.changes <- change:
	default:
		select {
		case <-s.changes:
		default:
		}
		select {
		case s.changes <- change:
		default:
		}
	}
}

func sortCategories(cats []model.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].CategoryID < cats[j].CategoryID
	})
}
