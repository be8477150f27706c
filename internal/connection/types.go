package connection

import (
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrTimeout       = errors.New("operation timeout")
	ErrAlreadyClosed = errors.New("already closed")
	ErrBadURL        = errors.New("unsupported websocket url")
)

// Frame is a MESSAGE (or error) delivered on a client subscription.
type Frame struct {
	Destination string
	Body        []byte
	ReceivedAt  time.Time
	Err         error // set for STOMP ERROR frames and read failures
}

// Message is what a Handler receives.
type Message struct {
	SubscriptionID string    // Manager registration id
	Destination    string    // e.g. /sub/auction/12
	Body           []byte    // JSON payload
	ReceivedAt     time.Time // local receive time
}

// Handler consumes messages for one registration. Handlers run on the
// subscription's dispatch goroutine and should not block for long.
type Handler func(Message)

// Status is a snapshot of the manager's connection state.
type Status struct {
	Connected         bool
	Connecting        bool
	SubscriptionCount int
	Attempts          int
}

// ManagerStats are cumulative counters.
type ManagerStats struct {
	Connects         uint64
	ConnectFailures  uint64
	ConnectionsLost  uint64
	MessagesReceived uint64
	InvalidMessages  uint64
	FrameErrors      uint64
}

// ClientConfig configures a single STOMP client.
type ClientConfig struct {
	URL               string         // http(s) or ws(s) endpoint, e.g. http://localhost:8080/ws
	SockJS            bool           // URL is a SockJS endpoint; dial its /websocket transport
	Jar               http.CookieJar // session cookies for the handshake
	Header            http.Header    // extra handshake headers
	HeartbeatOutgoing time.Duration
	HeartbeatIncoming time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	BufferSize        int // per-subscription frame buffer
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SockJS:            true,
		HeartbeatOutgoing: 4 * time.Second,
		HeartbeatIncoming: 4 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		BufferSize:        256,
	}
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	Client               ClientConfig
	MaxReconnectAttempts int           // give up after this many consecutive failed attempts
	ReconnectBaseDelay   time.Duration // delay = min(base * 2^attempts, max)
	ReconnectMaxDelay    time.Duration
	ConnectTimeout       time.Duration // bound for reconnect dials
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:               DefaultClientConfig(),
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		ConnectTimeout:       15 * time.Second,
	}
}
