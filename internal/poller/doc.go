// Package poller refreshes auction snapshots over REST.
//
// The poller:
//   - Fetches /auctions/{id} for every watched auction on an interval
//   - Bounds concurrent requests with an errgroup limit
//   - Hands each snapshot to a handler (rooms re-sync from it)
//   - Can be triggered on demand after a reconnect
package poller
