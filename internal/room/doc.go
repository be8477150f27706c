// Package room tracks one auction room over the shared STOMP connection.
//
// A Room subscribes to /sub/auction/{id}, announces the user with the
// participant join/ping/leave messages, publishes bids and keeps the room
// state (current bid, highest bidder, participant count, bid history, end
// result) up to date from classified room events. Bid checks here are advisory;
// the backend remains the authority.
package room
