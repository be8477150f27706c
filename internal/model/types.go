package model

import (
	"strings"
	"time"
)

// DefaultMinBid is the bid increment used when an auction does not carry one.
const DefaultMinBid int64 = 1000

// AuctionStatus is the time-derived phase of an auction.
type AuctionStatus string

const (
	StatusUpcoming AuctionStatus = "upcoming"
	StatusLive     AuctionStatus = "live"
	StatusEnded    AuctionStatus = "ended"
)

// -----------------------------------------------------------------------------
// Auctions
// -----------------------------------------------------------------------------

// Product is the nested product block some auction endpoints return.
type Product struct {
	Name        string `json:"name,omitempty"`
	ProductName string `json:"productName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`
}

// Auction is a single auction as returned by /auctions and /auctions/{id}.
type Auction struct {
	AuctionID             int64    `json:"auctionId"`
	ProductName           string   `json:"productName,omitempty"`
	Name                  string   `json:"name,omitempty"`
	AuctionName           string   `json:"auctionName,omitempty"`
	Product               *Product `json:"product,omitempty"`
	Description           string   `json:"description,omitempty"`
	ImageURL              string   `json:"imageUrl,omitempty"`
	StartPrice            int64    `json:"startPrice"`
	CurrentBid            int64    `json:"currentBid"`
	MinBid                int64    `json:"minBid"`
	StartTime             string   `json:"startTime"`
	EndTime               string   `json:"endTime"`
	HighestBidderUUID     string   `json:"highestBidderUUID,omitempty"`
	HighestBidderNickname string   `json:"highestBidderNickname,omitempty"`
	CategoryID            int64    `json:"categoryId,omitempty"`
	CategoryName          string   `json:"categoryName,omitempty"`
	Status                string   `json:"status,omitempty"`
}

// DisplayName returns the first non-empty name the backend provided.
func (a Auction) DisplayName() string {
	if a.Product != nil {
		if a.Product.ProductName != "" {
			return a.Product.ProductName
		}
		if a.Product.Name != "" {
			return a.Product.Name
		}
	}
	for _, s := range []string{a.ProductName, a.Name, a.AuctionName} {
		if s != "" {
			return s
		}
	}
	return "Auction item"
}

// Price is the current bid, or the start price before any bid.
func (a Auction) Price() int64 {
	if a.CurrentBid > 0 {
		return a.CurrentBid
	}
	return a.StartPrice
}

// Increment is the minimum raise, falling back to DefaultMinBid.
func (a Auction) Increment() int64 {
	if a.MinBid > 0 {
		return a.MinBid
	}
	return DefaultMinBid
}

// NextBid is the lowest amount the backend will accept as the next bid.
func (a Auction) NextBid() int64 {
	return a.Price() + a.Increment()
}

// Phase derives the auction status from its start and end times.
// Unparseable times are treated as "live" so the auction is not hidden.
func (a Auction) Phase(now time.Time) AuctionStatus {
	start, errStart := ParseTime(a.StartTime)
	end, errEnd := ParseTime(a.EndTime)

	switch {
	case errStart == nil && now.Before(start):
		return StatusUpcoming
	case errEnd == nil && !now.Before(end):
		return StatusEnded
	default:
		return StatusLive
	}
}

// AuctionRequest is the admin payload for creating an auction.
type AuctionRequest struct {
	ProductName string `json:"productName"`
	StartPrice  int64  `json:"startPrice"`
	MinBid      int64  `json:"minBid"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Description string `json:"description,omitempty"`
	CategoryID  int64  `json:"categoryId,omitempty"`
}

// WonAuction is an entry in a user's winning history.
type WonAuction struct {
	AuctionID   int64  `json:"auctionId"`
	ProductName string `json:"productName"`
	Description string `json:"description,omitempty"`
	WinningBid  int64  `json:"winningBid"`
	WinTime     string `json:"winTime"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// -----------------------------------------------------------------------------
// Bids
// -----------------------------------------------------------------------------

// Bid is an entry of /auctions/{id}/bids.
type Bid struct {
	BidID          int64  `json:"bidId"`
	AuctionID      int64  `json:"auctionId"`
	ProductName    string `json:"productName,omitempty"`
	BidderNickname string `json:"bidderNickname"`
	BidderUUID     string `json:"bidderUUID"`
	BidAmount      int64  `json:"bidAmount"`
	BidTime        string `json:"bidTime"`
	IsHighestBid   bool   `json:"isHighestBid"`
}

// BidRequest is published to /app/auction/bid and posted to /auctions/{id}/bids.
type BidRequest struct {
	AuctionID string `json:"auctionId"`
	Amount    int64  `json:"amount"`
}

// ParticipantMessage is the join/leave/ping payload.
type ParticipantMessage struct {
	AuctionID string `json:"auctionId"`
	UserUUID  string `json:"userUUID"`
}

// -----------------------------------------------------------------------------
// Categories
// -----------------------------------------------------------------------------

// Category is an auction category.
type Category struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryCode string `json:"categoryCode"`
	CategoryName string `json:"categoryName"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl"`
	SortOrder    int    `json:"sortOrder"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	IsActive     bool   `json:"isActive"`
}

// CategoryRequest is the admin payload for creating or updating a category.
type CategoryRequest struct {
	CategoryName string `json:"categoryName"`
	Description  string `json:"description,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

// User is the authenticated user as returned by /auth/check and /auth/login.
type User struct {
	UserUUID     string `json:"userUUID"`
	Nickname     string `json:"nickname"`
	Email        string `json:"email"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// timeLayouts are tried in order by ParseTime. The last two are what an HTML
// datetime-local input produces.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTime parses the timestamp formats the backend emits. Zone-less values
// are interpreted in local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
