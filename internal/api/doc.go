// Package api provides the auction backend REST client.
//
// The backend wraps most responses in an envelope:
//
//	{"code": "200", "msg": "...", "data": ...}
//
// Some endpoints return bare bodies; both are accepted. Authentication is
// cookie based, so a Client carries a cookie jar that can be shared with the
// WebSocket dialer (see Client.Jar).
package api
