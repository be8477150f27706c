package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bidflow/auction-client/internal/model"
)

// ListAuctions fetches all auctions, optionally restricted to one category.
func (c *Client) ListAuctions(ctx context.Context, opts ListAuctionsOptions) ([]model.Auction, error) {
	query := url.Values{}
	if opts.CategoryID > 0 {
		query.Set("categoryId", strconv.FormatInt(opts.CategoryID, 10))
	}

	var auctions []model.Auction
	if err := c.get(ctx, "/auctions", query, &auctions); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

// GetAuction fetches a single auction by id.
func (c *Client) GetAuction(ctx context.Context, auctionID int64) (*model.Auction, error) {
	var auction model.Auction
	if err := c.get(ctx, auctionPath(auctionID), nil, &auction); err != nil {
		return nil, fmt.Errorf("get auction %d: %w", auctionID, err)
	}
	return &auction, nil
}

// GetBids fetches the bid history of an auction.
func (c *Client) GetBids(ctx context.Context, auctionID int64) ([]model.Bid, error) {
	var bids []model.Bid
	if err := c.get(ctx, auctionPath(auctionID)+"/bids", nil, &bids); err != nil {
		return nil, fmt.Errorf("get bids %d: %w", auctionID, err)
	}
	return bids, nil
}

// PlaceBid submits a bid over REST and returns the server message. Rooms
// normally bid over the WebSocket; this is the fallback path.
func (c *Client) PlaceBid(ctx context.Context, auctionID, amount int64) (string, error) {
	msg, err := c.send(ctx, http.MethodPost, auctionPath(auctionID)+"/bids", model.BidRequest{AuctionID: strconv.FormatInt(auctionID, 10), Amount: amount}, nil)
	if err != nil {
		return "", fmt.Errorf("place bid %d: %w", auctionID, err)
	}
	return msg, nil
}

// CloseAuction asks the backend to close an auction.
func (c *Client) CloseAuction(ctx context.Context, auctionID int64) (string, error) {
	msg, err := c.send(ctx, http.MethodPost, auctionPath(auctionID)+"/close", nil, nil)
	if err != nil {
		return "", fmt.Errorf("close auction %d: %w", auctionID, err)
	}
	return msg, nil
}

// GetWonAuctions fetches the auctions a user has won.
func (c *Client) GetWonAuctions(ctx context.Context, userUUID string) ([]model.WonAuction, error) {
	if err := ValidateUserUUID(userUUID); err != nil {
		return nil, err
	}

	var won []model.WonAuction
	if err := c.get(ctx, "/auctions/"+userUUID+"/winner", nil, &won); err != nil {
		return nil, fmt.Errorf("get won auctions: %w", err)
	}
	return won, nil
}

func auctionPath(auctionID int64) string {
	return "/auctions/" + strconv.FormatInt(auctionID, 10)
}
