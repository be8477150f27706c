package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// failureMarker is the backend's Korean word for "failure".
const failureMarker = "실패"

// roomPrefix is the subscribe destination prefix for auction rooms.
const roomPrefix = "/sub/auction/"

// Classify decodes a room message body and returns its events in order.
//
// A participant count is reported first and does not stop classification.
// After it, the first matching rule wins: an auction-end notice, then a bid
// rejection, then a bid. A body that matches nothing yields no events.
func Classify(body []byte) ([]Event, error) {
	var wire roomWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode room message: %w", err)
	}

	auctionID := rawID(wire.AuctionID)
	var events []Event

	if wire.ParticipantCount != nil {
		events = append(events, Event{
			Kind:         KindParticipant,
			AuctionID:    auctionID,
			Participants: toWon(*wire.ParticipantCount),
		})
	}

	switch {
	case wire.WinnerNickname != "" && wire.WinningBid != nil:
		events = append(events, Event{
			Kind:           KindEnd,
			AuctionID:      auctionID,
			WinnerNickname: wire.WinnerNickname,
			WinningBid:     toWon(*wire.WinningBid),
		})
	case IsFailureMessage(wire.Message):
		events = append(events, Event{
			Kind:      KindRejected,
			AuctionID: auctionID,
			UserUUID:  wire.UserUUID,
			Message:   wire.Message,
		})
	case wire.Nickname != SystemNickname && wire.CurrentBid > 0:
		events = append(events, Event{
			Kind:      KindBid,
			AuctionID: auctionID,
			Nickname:  wire.Nickname,
			UserUUID:  wire.UserUUID,
			Amount:    toWon(wire.CurrentBid),
		})
	}

	return events, nil
}

// ClassifyMessage is Classify plus envelope data: events inherit the receive
// time, and the auction id falls back to the one in the destination.
func ClassifyMessage(body []byte, destination string, receivedAt time.Time) ([]Event, error) {
	events, err := Classify(body)
	if err != nil {
		return nil, err
	}
	fallback := AuctionIDFromDestination(destination)
	for i := range events {
		events[i].ReceivedAt = receivedAt
		if events[i].AuctionID == "" {
			events[i].AuctionID = fallback
		}
	}
	return events, nil
}

// IsFailureMessage reports whether a server message announces a failed bid.
func IsFailureMessage(msg string) bool {
	if msg == "" {
		return false
	}
	return strings.Contains(msg, failureMarker) || strings.Contains(strings.ToLower(msg), "fail")
}

// RoomDestination returns the subscribe destination of an auction room.
func RoomDestination(auctionID string) string {
	return roomPrefix + auctionID
}

// AuctionIDFromDestination extracts the auction id from /sub/auction/{id}.
func AuctionIDFromDestination(destination string) string {
	id, ok := strings.CutPrefix(destination, roomPrefix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}

// rawID renders a JSON number or string id as a string.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func toWon(v float64) int64 {
	return int64(math.Round(v))
}
