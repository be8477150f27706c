package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
// Database settings are checked separately by ValidateDatabase, since only
// the recorder needs them.
func (c *Config) Validate() error {
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("api.ws_url", c.API.WSURL, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RetryBackoff < 0 {
		return errors.New("api.retry_backoff must be >= 0")
	}
	if c.API.RateLimit < 0 {
		return errors.New("api.rate_limit must be >= 0")
	}

	if c.Connection.MaxReconnectAttempts < 1 {
		return errors.New("connection.max_reconnect_attempts must be >= 1")
	}
	if c.Connection.ReconnectBaseDelay > c.Connection.ReconnectMaxDelay {
		return errors.New("connection.reconnect_base_delay must be <= reconnect_max_delay")
	}
	if c.Connection.HeartbeatOutgoing < 0 || c.Connection.HeartbeatIncoming < 0 {
		return errors.New("connection heartbeats must be >= 0")
	}

	if c.Room.PingInterval <= 0 {
		return errors.New("room.ping_interval must be > 0")
	}
	if c.Catalog.PageSize < 1 {
		return errors.New("catalog.page_size must be >= 1")
	}
	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}

	if err := validateURL("health.base_url", c.Health.BaseURL, "http", "https"); err != nil {
		return err
	}
	for _, ep := range c.Health.Endpoints {
		if !strings.HasPrefix(ep, "/") {
			return fmt.Errorf("health.endpoints: %q must start with /", ep)
		}
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return errors.New("gateway.port must be between 1 and 65535")
	}
	if err := validateURL("gateway.backend_url", c.Gateway.BackendURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("gateway.backend_ws_url", c.Gateway.BackendWSURL, "ws", "wss"); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}

	return nil
}

// ValidateDatabase checks the database section.
func (c *Config) ValidateDatabase() error {
	return c.Database.validate("database")
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", field, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s: scheme %q not one of %v", field, u.Scheme, schemes)
}
