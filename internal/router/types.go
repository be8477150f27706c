package router

import (
	"encoding/json"
	"time"
)

// Kind identifies a classified room event.
type Kind string

const (
	KindParticipant Kind = "participant"
	KindEnd         Kind = "end"
	KindRejected    Kind = "rejected"
	KindBid         Kind = "bid"
)

// SystemNickname marks server-originated room messages that are not bids.
const SystemNickname = "System"

// Event is one classified room message. Only the fields for Kind are set.
type Event struct {
	Kind       Kind
	AuctionID  string
	ReceivedAt time.Time

	// KindParticipant
	Participants int64

	// KindBid
	Nickname string
	UserUUID string
	Amount   int64

	// KindEnd
	WinnerNickname string
	WinningBid     int64

	// KindRejected
	Message string
}

// RouterConfig holds initial buffer capacities. Buffers grow on demand.
type RouterConfig struct {
	BidBufferSize         int // Default: 1000
	ParticipantBufferSize int // Default: 1000
	EndBufferSize         int // Default: 100
	RejectedBufferSize    int // Default: 100
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		BidBufferSize:         1000,
		ParticipantBufferSize: 1000,
		EndBufferSize:         100,
		RejectedBufferSize:    100,
	}
}

// roomWire is the union of every room message shape sent on
// /sub/auction/{id}. Pointers distinguish absent fields from zero.
type roomWire struct {
	AuctionID        json.RawMessage `json:"auctionId"`
	ParticipantCount *float64        `json:"participantCount"`
	WinnerNickname   string          `json:"winnerNickname"`
	WinningBid       *float64        `json:"winningBid"`
	Message          string          `json:"message"`
	Nickname         string          `json:"nickname"`
	UserUUID         string          `json:"userUUID"`
	CurrentBid       float64         `json:"currentBid"`
}
