package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
)

// STOMP subprotocols offered during the WebSocket handshake.
var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

const (
	unsubscribeWait = 2 * time.Second
	disconnectWait  = 2 * time.Second
)

// Client represents a single STOMP session over one WebSocket.
type Client interface {
	// Connect dials the WebSocket and performs the STOMP handshake.
	Connect(ctx context.Context) error

	// Subscribe starts a subscription to destination.
	Subscribe(destination string) (Subscription, error)

	// Send publishes a JSON body to destination.
	Send(destination string, body []byte) error

	// Errors reports the first connection loss after Connect.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// Close sends DISCONNECT and closes the WebSocket. Idempotent.
	Close() error
}

// Subscription is one live STOMP subscription.
type Subscription interface {
	Destination() string

	// Frames is closed when the subscription or its connection ends.
	Frames() <-chan Frame

	Unsubscribe() error
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *stomp.Conn
	ws        *wsConn
	connected bool
	closed    bool

	errors chan error
	done   chan struct{}
}

// NewClient creates a new STOMP client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultClientConfig().BufferSize
	}

	return &client{
		cfg:    cfg,
		logger: logger,
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and the STOMP session.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	target, err := NormalizeURL(c.cfg.URL, c.cfg.SockJS)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		Jar:              c.cfg.Jar,
		Subprotocols:     stompSubprotocols,
	}

	ws, resp, err := dialer.DialContext(ctx, target, c.cfg.Header.Clone())
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}

	rwc := newWSConn(ws, c.cfg.WriteTimeout, c.connectionLost)

	host := "/"
	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	type result struct {
		conn *stomp.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := stomp.Connect(rwc,
			stomp.ConnOpt.HeartBeat(c.cfg.HeartbeatOutgoing, c.cfg.HeartbeatIncoming),
			stomp.ConnOpt.Host(host),
			stomp.ConnOpt.Logger(newStompLogger(c.logger)),
		)
		ch <- result{conn, err}
	}()

	var conn *stomp.Conn
	select {
	case r := <-ch:
		if r.err != nil {
			rwc.Close()
			return fmt.Errorf("stomp connect: %w", r.err)
		}
		conn = r.conn
	case <-ctx.Done():
		// Closing the socket unblocks the handshake goroutine.
		rwc.Close()
		return ctx.Err()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.MustDisconnect()
		rwc.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.ws = rwc
	c.connected = true
	c.mu.Unlock()

	c.logger.Debug("stomp connected", "url", target, "version", string(conn.Version()))

	return nil
}

// Subscribe starts a subscription with automatic acknowledgement.
func (c *client) Subscribe(destination string) (Subscription, error) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return nil, ErrNotConnected
	}

	sub, err := conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", destination, err)
	}

	s := &subscription{
		sub:         sub,
		destination: destination,
		frames:      make(chan Frame, c.cfg.BufferSize),
		stop:        make(chan struct{}),
		done:        c.done,
	}
	go s.forward()

	c.logger.Debug("subscribed", "destination", destination, "stomp_id", sub.Id())
	return s, nil
}

// Send publishes body to destination as application/json.
func (c *client) Send(destination string, body []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	if err := conn.Send(destination, "application/json", body); err != nil {
		return fmt.Errorf("send %s: %w", destination, err)
	}
	return nil
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	ws := c.ws
	c.mu.Unlock()

	// Signal subscription forwarders to stop
	close(c.done)

	if conn != nil {
		result := make(chan error, 1)
		go func() { result <- conn.Disconnect() }()

		select {
		case err := <-result:
			if err != nil {
				c.logger.Debug("stomp disconnect", "error", err)
			}
		case <-time.After(disconnectWait):
			conn.MustDisconnect()
		}
	}

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// connectionLost is called once by the socket adapter on the first read or
// write failure.
func (c *client) connectionLost(err error) {
	c.mu.Lock()
	report := c.connected && !c.closed
	c.connected = false
	c.mu.Unlock()

	if !report {
		return
	}

	c.logger.Debug("connection lost", "error", err)
	select {
	case c.errors <- err:
	default:
	}
}

// subscription adapts a go-stomp subscription to Subscription.
type subscription struct {
	sub         *stomp.Subscription
	destination string
	frames      chan Frame

	stop     chan struct{} // closed by Unsubscribe
	stopOnce sync.Once
	done     <-chan struct{} // closed by client.Close
}

func (s *subscription) Destination() string {
	return s.destination
}

func (s *subscription) Frames() <-chan Frame {
	return s.frames
}

// Unsubscribe sends UNSUBSCRIBE. The broker's receipt is awaited briefly.
func (s *subscription) Unsubscribe() error {
	err := ErrAlreadyClosed
	s.stopOnce.Do(func() {
		close(s.stop)

		result := make(chan error, 1)
		go func() { result <- s.sub.Unsubscribe() }()

		select {
		case err = <-result:
		case <-time.After(unsubscribeWait):
			err = ErrTimeout
		}
	})
	return err
}

// forward copies go-stomp messages to frames. After Unsubscribe it keeps
// draining so the library can finish its own shutdown.
func (s *subscription) forward() {
	defer close(s.frames)

	for {
		select {
		case msg, ok := <-s.sub.C:
			if !ok {
				return
			}
			if s.stopped() {
				continue
			}

			f := Frame{ReceivedAt: time.Now()}
			if msg.Err != nil {
				f.Err = msg.Err
			} else {
				f.Destination = msg.Destination
				f.Body = msg.Body
			}

			select {
			case s.frames <- f:
			case <-s.stop:
			case <-s.done:
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}
