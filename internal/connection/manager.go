package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Manager owns the connection and the subscription registry.
type Manager interface {
	// Connect dials unless already connecting or connected. On failure a
	// reconnect is scheduled and the dial error is returned.
	Connect(ctx context.Context) error

	// Subscribe registers handler for destination and returns its id. The
	// destination is subscribed now if connected, otherwise on next connect.
	Subscribe(destination string, handler Handler) string

	// Unsubscribe removes a registration. Unknown ids are ignored.
	Unsubscribe(id string)

	// Send JSON-encodes payload and publishes it. Returns ErrNotConnected
	// while disconnected.
	Send(destination string, payload any) error

	// Disconnect cancels any pending reconnect, clears the registry and
	// closes the client.
	Disconnect()

	// Stop disconnects and waits for dispatch goroutines to exit.
	Stop(ctx context.Context) error

	// OnStateChange registers a listener called after every transition.
	OnStateChange(fn func(Status))

	Status() Status
	Stats() ManagerStats
}

// ClientFactory builds a Client for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// timer is the part of *time.Timer the manager uses.
type timer interface {
	Stop() bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*manager)

// WithClientFactory replaces the STOMP client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *manager) {
		m.newClient = f
	}
}

// registration is one Subscribe call. It survives reconnects.
type registration struct {
	id          string
	destination string
	handler     Handler
	seq         uint64

	active atomic.Bool
	live   Subscription // nil while not subscribed on the current client
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	newClient ClientFactory
	afterFunc func(d time.Duration, f func()) timer

	mu         sync.Mutex
	client     Client
	stopWatch  chan struct{}
	connected  bool
	connecting bool
	attempts   int
	timer      timer
	gen        uint64 // bumped by Disconnect
	registry   map[string]*registration
	nextSeq    uint64
	listeners  []func(Status)

	wg sync.WaitGroup

	connects        atomic.Uint64
	connectFailures atomic.Uint64
	connectionsLost atomic.Uint64
	received        atomic.Uint64
	invalid         atomic.Uint64
	frameErrors     atomic.Uint64
}

// NewManager creates a new connection manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:       cfg,
		logger:    logger.With("component", "connection"),
		newClient: NewClient,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		registry: make(map[string]*registration),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// BackoffDelay returns min(base * 2^attempts, max).
func BackoffDelay(attempts int, base, max time.Duration) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// Connect dials the backend.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.connecting || m.connected {
		m.mu.Unlock()
		return nil
	}
	if m.timer == nil && m.attempts >= m.cfg.MaxReconnectAttempts {
		// Explicit Connect after giving up starts a fresh cycle.
		m.attempts = 0
	}
	m.connecting = true
	m.attempts++
	attempt := m.attempts
	gen := m.gen
	m.stopTimerLocked()
	m.mu.Unlock()

	m.notify()

	m.logger.Info("connecting", "attempt", attempt, "url", m.cfg.Client.URL)

	client := m.newClient(m.cfg.Client, m.logger.With("attempt", attempt))
	err := client.Connect(ctx)

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect ran while dialing.
		m.mu.Unlock()
		client.Close()
		return ErrAlreadyClosed
	}

	if err != nil {
		m.connecting = false
		m.connectFailures.Add(1)
		m.scheduleReconnectLocked()
		m.mu.Unlock()

		m.logger.Warn("connect failed", "attempt", attempt, "error", err)
		m.notify()
		return fmt.Errorf("connect: %w", err)
	}

	m.client = client
	m.stopWatch = make(chan struct{})
	m.connected = true
	m.connecting = false
	m.attempts = 0
	m.connects.Add(1)

	resubscribed := 0
	for _, reg := range m.sortedLocked() {
		if reg.live == nil {
			if m.subscribeLocked(reg) {
				resubscribed++
			}
		}
	}

	m.wg.Add(1)
	go m.watch(client, m.stopWatch)
	m.mu.Unlock()

	m.logger.Info("connected", "subscriptions", resubscribed)
	m.notify()
	return nil
}

// Subscribe registers a handler.
func (m *manager) Subscribe(destination string, handler Handler) string {
	reg := &registration{
		id:          uuid.NewString(),
		destination: destination,
		handler:     handler,
	}
	reg.active.Store(true)

	m.mu.Lock()
	m.nextSeq++
	reg.seq = m.nextSeq
	m.registry[reg.id] = reg
	if m.connected {
		m.subscribeLocked(reg)
	}
	m.mu.Unlock()

	m.logger.Debug("registered subscription", "id", reg.id, "destination", destination)
	return reg.id
}

// Unsubscribe removes a registration and its live subscription.
func (m *manager) Unsubscribe(id string) {
	m.mu.Lock()
	reg, ok := m.registry[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.registry, id)
	reg.active.Store(false)
	live := reg.live
	reg.live = nil
	m.mu.Unlock()

	if live != nil {
		if err := live.Unsubscribe(); err != nil {
			m.logger.Debug("unsubscribe", "destination", reg.destination, "error", err)
		}
	}
	m.logger.Debug("removed subscription", "id", id, "destination", reg.destination)
}

// Send publishes payload as JSON.
func (m *manager) Send(destination string, payload any) error {
	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = p
	case json.RawMessage:
		body = p
	default:
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	m.mu.Lock()
	client := m.client
	connected := m.connected
	m.mu.Unlock()

	if !connected || client == nil {
		return ErrNotConnected
	}
	return client.Send(destination, body)
}

// Disconnect tears everything down and resets the attempt counter.
func (m *manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopTimerLocked()

	var lives []Subscription
	for id, reg := range m.registry {
		reg.active.Store(false)
		if reg.live != nil {
			lives = append(lives, reg.live)
			reg.live = nil
		}
		delete(m.registry, id)
	}

	client := m.client
	stopWatch := m.stopWatch
	m.client = nil
	m.stopWatch = nil
	m.connected = false
	m.connecting = false
	m.attempts = 0
	m.mu.Unlock()

	if client != nil {
		var wg sync.WaitGroup
		for _, live := range lives {
			wg.Add(1)
			go func(s Subscription) {
				defer wg.Done()
				s.Unsubscribe()
			}(live)
		}
		wg.Wait()

		close(stopWatch)
		if err := client.Close(); err != nil {
			m.logger.Debug("close client", "error", err)
		}
	}

	m.logger.Info("disconnected")
	m.notify()
}

// Stop disconnects and waits for goroutines with the context deadline.
func (m *manager) Stop(ctx context.Context) error {
	m.Disconnect()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, dispatchers still running")
		return ctx.Err()
	}
}

// OnStateChange registers a status listener.
func (m *manager) OnStateChange(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status returns a snapshot.
func (m *manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Stats returns cumulative counters.
func (m *manager) Stats() ManagerStats {
	return ManagerStats{
		Connects:         m.connects.Load(),
		ConnectFailures:  m.connectFailures.Load(),
		ConnectionsLost:  m.connectionsLost.Load(),
		MessagesReceived: m.received.Load(),
		InvalidMessages:  m.invalid.Load(),
		FrameErrors:      m.frameErrors.Load(),
	}
}

func (m *manager) statusLocked() Status {
	return Status{
		Connected:         m.connected,
		Connecting:        m.connecting,
		SubscriptionCount: len(m.registry),
		Attempts:          m.attempts,
	}
}

func (m *manager) notify() {
	m.mu.Lock()
	st := m.statusLocked()
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

// sortedLocked returns registrations in subscribe order.
func (m *manager) sortedLocked() []*registration {
	regs := make([]*registration, 0, len(m.registry))
	for _, reg := range m.registry {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
	return regs
}

// subscribeLocked subscribes reg on the current client and starts its
// dispatcher. A failure leaves reg pending for the next connect.
func (m *manager) subscribeLocked(reg *registration) bool {
	sub, err := m.client.Subscribe(reg.destination)
	if err != nil {
		m.logger.Warn("subscribe failed", "destination", reg.destination, "error", err)
		return false
	}
	reg.live = sub

	m.wg.Add(1)
	go m.dispatch(reg, sub)
	return true
}

// dispatch delivers frames from one live subscription to its handler.
func (m *manager) dispatch(reg *registration, sub Subscription) {
	defer m.wg.Done()

	for f := range sub.Frames() {
		if f.Err != nil {
			m.frameErrors.Add(1)
			m.logger.Warn("stomp error frame", "destination", reg.destination, "error", f.Err)
			continue
		}
		if !reg.active.Load() {
			continue
		}
		if !json.Valid(f.Body) {
			m.invalid.Add(1)
			m.logger.Warn("dropping non-JSON message",
				"destination", reg.destination,
				"size", len(f.Body),
			)
			continue
		}

		m.received.Add(1)

		dest := f.Destination
		if dest == "" {
			dest = reg.destination
		}
		reg.handler(Message{
			SubscriptionID: reg.id,
			Destination:    dest,
			Body:           f.Body,
			ReceivedAt:     f.ReceivedAt,
		})
	}
}

// watch waits for the client to report a lost connection.
func (m *manager) watch(client Client, stop <-chan struct{}) {
	defer m.wg.Done()

	select {
	case err := <-client.Errors():
		m.connectionLost(client, err)
	case <-stop:
	}
}

// connectionLost marks the manager disconnected, drops live handles (the
// registry is kept) and schedules a reconnect.
func (m *manager) connectionLost(client Client, err error) {
	m.mu.Lock()
	if m.client != client {
		m.mu.Unlock()
		return
	}
	m.client = nil
	m.stopWatch = nil
	m.connected = false
	m.connecting = false
	for _, reg := range m.registry {
		reg.live = nil
	}
	m.connectionsLost.Add(1)
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	m.logger.Warn("connection lost", "error", err)
	client.Close()
	m.notify()
}

// scheduleReconnectLocked arms the reconnect timer unless the attempt cap
// has been reached.
func (m *manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.logger.Error("giving up reconnecting",
			"attempts", m.attempts,
			"max", m.cfg.MaxReconnectAttempts,
		)
		return
	}

	m.stopTimerLocked()
	delay := BackoffDelay(m.attempts, m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay)
	gen := m.gen

	m.logger.Info("scheduling reconnect", "delay", delay, "attempts", m.attempts)

	m.timer = m.afterFunc(delay, func() {
		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.timer = nil
		m.mu.Unlock()

		ctx := context.Background()
		if m.cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.ConnectTimeout)
			defer cancel()
		}
		if err := m.Connect(ctx); err != nil && !errors.Is(err, ErrAlreadyClosed) {
			m.logger.Debug("reconnect attempt failed", "error", err)
		}
	})
}

func (m *manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
