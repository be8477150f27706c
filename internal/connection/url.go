package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL converts an http(s) endpoint to ws(s). When sockJS is set the
// SockJS raw WebSocket transport ({endpoint}/websocket) is targeted.
func NormalizeURL(raw string, sockJS bool) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadURL, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrBadURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host in %q", ErrBadURL, raw)
	}

	if sockJS && !strings.HasSuffix(u.Path, "/websocket") {
		u.Path = strings.TrimRight(u.Path, "/") + "/websocket"
	}
	return u.String(), nil
}
