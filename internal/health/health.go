// Package health probes the backend endpoints the client depends on.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status messages reported in Result.Message.
const (
	MsgOK           = "ok"
	MsgNotFound     = "endpoint not found; check that the backend server is running"
	MsgServerError  = "backend internal server error"
	MsgClientError  = "client request error"
	MsgTimeout      = "backend response timed out; the server is slow or not responding"
	MsgUnreachable  = "cannot connect to the backend; check that the server is running"
	msgConnErrorFmt = "connection error: %v"
)

// Result is the outcome of probing one endpoint.
type Result struct {
	Healthy   bool      `json:"isHealthy"`
	Status    int       `json:"status,omitempty"` // 0 when no response was received
	Message   string    `json:"message"`
	Endpoint  string    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds checker configuration.
type Config struct {
	BaseURL   string        // backend origin, e.g. http://localhost:8080
	Endpoints []string      // paths probed by CheckAll
	Timeout   time.Duration // per-probe timeout (default: 5s)
	CacheTTL  time.Duration // how long CheckAll results are reused (default: 30s)
	Interval  time.Duration // monitoring interval (default: 30s)
}

// DefaultEndpoints are the auctions list, the login endpoint and the
// WebSocket endpoint.
var DefaultEndpoints = []string{"/api/auctions", "/api/auth/login", "/ws"}

// DefaultConfig returns defaults for a backend on localhost:8080.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8080",
		Endpoints: append([]string(nil), DefaultEndpoints...),
		Timeout:   5 * time.Second,
		CacheTTL:  30 * time.Second,
		Interval:  30 * time.Second,
	}
}

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient sets the HTTP client used for probes.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Checker) {
		if hc != nil {
			c.client = hc
		}
	}
}

// Checker probes backend endpoints and caches the results.
type Checker struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	lastCheck time.Time
	results   []Result
	primary   *Result // result of the first endpoint (the auctions list)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChecker creates a Checker.
func NewChecker(cfg Config, logger *slog.Logger, opts ...Option) *Checker {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = def.Endpoints
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Checker{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.With("component", "health"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckEndpoint sends a HEAD request to path. Any response below 500 counts
// as healthy: a 404 or 405 still proves the server is up.
func (c *Checker) CheckEndpoint(ctx context.Context, path string) Result {
	result := Result{
		Endpoint:  c.cfg.BaseURL + path,
		Timestamp: c.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, result.Endpoint, nil)
	if err != nil {
		result.Message = fmt.Sprintf(msgConnErrorFmt, err)
		return result
	}

	resp, err := c.client.Do(req)
	if err != nil {
		result.Message = describeError(err)
		return result
	}
	resp.Body.Close()

	result.Status = resp.StatusCode
	result.Healthy = resp.StatusCode < 500
	result.Message = statusMessage(resp.StatusCode)
	return result
}

// CheckAll probes every configured endpoint concurrently. Results younger
// than CacheTTL are returned without probing.
func (c *Checker) CheckAll(ctx context.Context) []Result {
	c.mu.RLock()
	fresh := c.results != nil && c.now().Sub(c.lastCheck) < c.cfg.CacheTTL
	cached := append([]Result(nil), c.results...)
	c.mu.RUnlock()

	if fresh {
		return cached
	}
	return c.refresh(ctx)
}

// refresh probes every endpoint and replaces the cache.
func (c *Checker) refresh(ctx context.Context) []Result {
	results := make([]Result, len(c.cfg.Endpoints))

	var g errgroup.Group
	for i, path := range c.cfg.Endpoints {
		g.Go(func() error {
			results[i] = c.CheckEndpoint(ctx, path)
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		if r.Healthy {
			c.logger.Debug("endpoint healthy", "endpoint", r.Endpoint, "status", r.Status)
		} else {
			c.logger.Warn("endpoint unhealthy",
				"endpoint", r.Endpoint,
				"status", r.Status,
				"message", r.Message,
			)
		}
	}

	c.mu.Lock()
	c.lastCheck = c.now()
	c.results = results
	if len(results) > 0 {
		primary := results[0]
		c.primary = &primary
	}
	c.mu.Unlock()

	return append([]Result(nil), results...)
}

// Cached returns the cached result of the primary endpoint.
func (c *Checker) Cached() (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.primary == nil {
		return Result{}, false
	}
	return *c.primary, true
}

// Results returns the last full set of results.
func (c *Checker) Results() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Result(nil), c.results...)
}

// IsHealthy reports whether the primary endpoint was healthy at the last check.
func (c *Checker) IsHealthy() bool {
	r, ok := c.Cached()
	return ok && r.Healthy
}

// Start checks immediately and then on every Interval.
func (c *Checker) Start(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		c.refresh(c.ctx)
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.refresh(c.ctx)
			}
		}
	}()

	c.logger.Info("health monitoring started",
		"base_url", c.cfg.BaseURL,
		"interval", c.cfg.Interval,
	)
	return nil
}

// Stop ends monitoring.
func (c *Checker) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("health monitoring stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeveloperMessage returns troubleshooting steps for a failed endpoint.
// status is 0 when no response was received.
func (c *Checker) DeveloperMessage(endpoint string, status int) string {
	url := c.cfg.BaseURL + endpoint

	lines := []string{
		"backend API connection failed",
		"endpoint: " + url,
	}

	switch {
	case status == http.StatusNotFound:
		lines = append(lines,
			"",
			"how to fix:",
			"1. check that the backend server is running",
			"2. check that it listens on the configured host and port",
			"3. check that the endpoint path is correct",
			"",
			"check with:",
			"curl -I "+url,
		)
	case status == 0:
		lines = append(lines,
			"",
			"how to fix:",
			"1. start the backend server",
			"2. check that no firewall blocks the port",
			"3. check the network connection",
			"",
			"start the server, for example:",
			"java -jar your-backend-server.jar",
		)
	}

	lines = append(lines, "", "run `apicheck` for a full report")
	return strings.Join(lines, "\n")
}

func statusMessage(status int) string {
	switch {
	case status == http.StatusNotFound:
		return MsgNotFound
	case status >= 500:
		return MsgServerError
	case status >= 400:
		return MsgClientError
	default:
		return MsgOK
	}
}

func describeError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return MsgTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return MsgUnreachable
	default:
		return fmt.Sprintf(msgConnErrorFmt, err)
	}
}
