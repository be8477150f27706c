// Package database manages the recorder's PostgreSQL connection pool and schema.
//
// The recorder keeps three append-only tables:
//   - bid_events: accepted bids seen on auction rooms
//   - participant_counts: participant count samples
//   - auction_results: one row per ended auction
package database
