// Package model defines the DTOs exchanged with the auction backend.
//
// All types mirror the backend's JSON shapes. The client enforces no
// invariants beyond optional-field fallbacks.
//
// Conventions:
//   - Prices: int64 won
//   - Timestamps: ISO-8601 strings on the wire, parsed with ParseTime
//   - Users: identified by the backend's userUUID string
package model
