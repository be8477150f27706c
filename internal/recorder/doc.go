// Package recorder keeps room subscriptions in step with the live catalog.
//
// The tracker subscribes to /sub/auction/{id} for every live auction, funnels
// all room messages into one channel for the router, and unsubscribes a room
// a grace period after its auction ends so the final result is still seen.
package recorder
