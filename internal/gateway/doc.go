// Package gateway serves the HTTP front door for browser clients.
//
// Routes:
//   - /api/proxy/*path: REST requests forwarded to {backend}/api/{path}
//   - /api/ws-proxy: WebSocket bridged to the backend STOMP endpoint
//   - /health: backend health results
package gateway
