// Package connection manages the STOMP-over-WebSocket link to the auction
// backend.
//
// A Client is one STOMP session on one WebSocket. The Manager owns at most
// one Client at a time and keeps a registry of destination subscriptions
// that outlives it:
//   - Connect dials and re-subscribes every registered destination
//   - a lost connection is retried with capped exponential backoff
//   - Disconnect tears down the client and clears the registry
//
// Handlers receive each MESSAGE body after it has been checked to be JSON.
package connection
