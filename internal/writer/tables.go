package writer

import (
	"github.com/jackc/pgx/v5"

	"github.com/bidflow/auction-client/internal/router"
)

// table describes how one event kind is persisted.
type table struct {
	name  string
	kind  router.Kind
	queue func(b *pgx.Batch, ev router.Event)
}

const insertBidSQL = `
	INSERT INTO bid_events (auction_id, user_uuid, nickname, amount, received_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (auction_id, amount) DO NOTHING`

const insertParticipantSQL = `
	INSERT INTO participant_counts (auction_id, participants, received_at)
	VALUES ($1, $2, $3)`

const insertResultSQL = `
	INSERT INTO auction_results (auction_id, winner_nickname, winning_bid, received_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (auction_id) DO NOTHING`

var bidTable = table{
	name: "bid_events",
	kind: router.KindBid,
	queue: func(b *pgx.Batch, ev router.Event) {
		r := toBidRow(ev)
		b.Queue(insertBidSQL, r.AuctionID, r.UserUUID, r.Nickname, r.Amount, r.ReceivedAt)
	},
}

var participantTable = table{
	name: "participant_counts",
	kind: router.KindParticipant,
	queue: func(b *pgx.Batch, ev router.Event) {
		r := toParticipantRow(ev)
		b.Queue(insertParticipantSQL, r.AuctionID, r.Participants, r.ReceivedAt)
	},
}

var resultTable = table{
	name: "auction_results",
	kind: router.KindEnd,
	queue: func(b *pgx.Batch, ev router.Event) {
		r := toResultRow(ev)
		b.Queue(insertResultSQL, r.AuctionID, r.WinnerNickname, r.WinningBid, r.ReceivedAt)
	},
}

func toBidRow(ev router.Event) bidRow {
	return bidRow{
		AuctionID:  ev.AuctionID,
		UserUUID:   ev.UserUUID,
		Nickname:   ev.Nickname,
		Amount:     ev.Amount,
		ReceivedAt: ev.ReceivedAt.UTC(),
	}
}

func toParticipantRow(ev router.Event) participantRow {
	return participantRow{
		AuctionID:    ev.AuctionID,
		Participants: ev.Participants,
		ReceivedAt:   ev.ReceivedAt.UTC(),
	}
}

func toResultRow(ev router.Event) resultRow {
	return resultRow{
		AuctionID:      ev.AuctionID,
		WinnerNickname: ev.WinnerNickname,
		WinningBid:     ev.WinningBid,
		ReceivedAt:     ev.ReceivedAt.UTC(),
	}
}
