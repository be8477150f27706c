// Package writer implements batch writers for recorded room events.
//
// Writers:
//   - Bid writer (bid_events)
//   - Participant writer (participant_counts)
//   - Result writer (auction_results)
//
// Each writer drains one router buffer, flushes when the batch is full or the
// flush interval elapses, and flushes once more on Stop. All writers use
// append-only semantics: duplicates are dropped with ON CONFLICT DO NOTHING.
package writer
