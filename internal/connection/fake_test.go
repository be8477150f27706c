package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// fakeSub is an in-memory Subscription.
type fakeSub struct {
	destination string
	frames      chan Frame

	mu           sync.Mutex
	unsubscribed bool
	closeOnce    sync.Once
}

func newFakeSub(destination string) *fakeSub {
	return &fakeSub{destination: destination, frames: make(chan Frame, 16)}
}

func (s *fakeSub) Destination() string  { return s.destination }
func (s *fakeSub) Frames() <-chan Frame { return s.frames }

func (s *fakeSub) Unsubscribe() error {
	s.mu.Lock()
	s.unsubscribed = true
	s.mu.Unlock()
	s.close()
	return nil
}

func (s *fakeSub) isUnsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

func (s *fakeSub) close() {
	s.closeOnce.Do(func() { close(s.frames) })
}

func (s *fakeSub) push(body string) {
	s.frames <- Frame{Destination: s.destination, Body: []byte(body), ReceivedAt: time.Now()}
}

type sentMessage struct {
	destination string
	body        string
}

// fakeClient is an in-memory Client.
type fakeClient struct {
	connectErr error
	errors     chan error

	mu        sync.Mutex
	connected bool
	closed    bool
	subs      []*fakeSub
	sent      []sentMessage
}

func newFakeClient(connectErr error) *fakeClient {
	return &fakeClient{connectErr: connectErr, errors: make(chan error, 1)}
}

func (c *fakeClient) Connect(ctx context.Context) error {
	if c.connectErr != nil {
		return c.connectErr
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Subscribe(destination string) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	s := newFakeSub(destination)
	c.subs = append(c.subs, s)
	return s, nil
}

func (c *fakeClient) Send(destination string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.sent = append(c.sent, sentMessage{destination, string(body)})
	return nil
}

func (c *fakeClient) Errors() <-chan error { return c.errors }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	for _, s := range c.subs {
		s.close()
	}
	return nil
}

// fail simulates a dropped connection.
func (c *fakeClient) fail() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.errors <- errors.New("websocket: close 1006 (abnormal closure)")
}

func (c *fakeClient) subscriptions() []*fakeSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeSub(nil), c.subs...)
}

func (c *fakeClient) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out clients in order. Once the script runs out, every
// further client fails to connect.
type fakeDialer struct {
	mu      sync.Mutex
	script  []*fakeClient
	created []*fakeClient
}

func (d *fakeDialer) factory(cfg ClientConfig, logger *slog.Logger) Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	var c *fakeClient
	if len(d.script) > 0 {
		c = d.script[0]
		d.script = d.script[1:]
	} else {
		c = newFakeClient(errors.New("dial tcp: connection refused"))
	}
	d.created = append(d.created, c)
	return c
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.created)
}

func (d *fakeDialer) last() *fakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[len(d.created)-1]
}

// fakeTimer records a scheduled callback instead of running it.
type fakeTimer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.delay
	}
	return out
}

func (c *fakeClock) pending() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	t := c.timers[len(c.timers)-1]
	if t.isStopped() {
		return nil
	}
	return t
}

// fire runs the most recent timer callback synchronously.
func (c *fakeClock) fire() bool {
	t := c.pending()
	if t == nil {
		return false
	}
	t.Stop()
	t.fn()
	return true
}

func newTestManager(d *fakeDialer, clock *fakeClock) *manager {
	cfg := DefaultManagerConfig()
	cfg.Client.URL = "http://localhost:8080/ws"
	m := NewManager(cfg, nil, WithClientFactory(d.factory)).(*manager)
	m.afterFunc = clock.afterFunc
	return m
}
