package recorder

import (
	"strconv"
	"time"

	"github.com/bidflow/auction-client/internal/model"
	"github.com/bidflow/auction-client/internal/router"
)

// SnapshotBid turns the highest bid of an auction snapshot into a bid event.
// It reports false when the auction has no bids yet.
func SnapshotBid(a model.Auction, now time.Time) (router.Event, bool) {
	if a.CurrentBid <= 0 || a.HighestBidderNickname == "" {
		return router.Event{}, false
	}
	return router.Event{
		Kind:       router.KindBid,
		AuctionID:  strconv.FormatInt(a.AuctionID, 10),
		ReceivedAt: now,
		Nickname:   a.HighestBidderNickname,
		UserUUID:   a.HighestBidderUUID,
		Amount:     a.CurrentBid,
	}, true
}
