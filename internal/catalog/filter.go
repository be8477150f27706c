package catalog

import (
	"strings"
	"time"

	"github.com/bidflow/auction-client/internal/model"
)

// DefaultPageSize is the auction list page size.
const DefaultPageSize = 12

// Filter narrows the catalog. Zero fields match everything.
type Filter struct {
	CategoryID int64
	Query      string // case-insensitive match on name or description
	MinPrice   int64  // compared with currentBid || startPrice
	MaxPrice   int64
	Status     model.AuctionStatus
}

// Match reports whether a passes every set criterion at now.
func (f Filter) Match(a model.Auction, now time.Time) bool {
	if f.CategoryID != 0 && a.CategoryID != f.CategoryID {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(a.DisplayName()), q) &&
			!strings.Contains(strings.ToLower(a.Description), q) {
			return false
		}
	}
	price := a.Price()
	if f.MinPrice > 0 && price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && price > f.MaxPrice {
		return false
	}
	if f.Status != "" && a.Phase(now) != f.Status {
		return false
	}
	return true
}

// Apply returns the auctions matching f, in input order.
func Apply(auctions []model.Auction, f Filter, now time.Time) []model.Auction {
	out := make([]model.Auction, 0, len(auctions))
	for _, a := range auctions {
		if f.Match(a, now) {
			out = append(out, a)
		}
	}
	return out
}

// Page is one page of a paginated list.
type Page[T any] struct {
	Items      []T
	Number     int // 1-based
	TotalPages int
	Total      int
}

// Paginate returns page number (1-based) of items. Out-of-range pages are
// clamped; size <= 0 uses DefaultPageSize.
func Paginate[T any](items []T, number, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages == 0 {
		return Page[T]{Items: []T{}, Number: 1, TotalPages: 0, Total: 0}
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}

	start := (number - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return Page[T]{
		Items:      items[start:end],
		Number:     number,
		TotalPages: pages,
		Total:      total,
	}
}
