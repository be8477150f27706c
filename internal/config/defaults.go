package config

import (
	"net/url"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL              = "http://localhost:8080/api"
	DefaultWSURL                = "http://localhost:8080/ws"
	DefaultAPITimeout           = 10 * time.Second
	DefaultRetryBackoff         = 500 * time.Millisecond
	DefaultRateBurst            = 5
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultHeartbeat            = 4 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultResyncInterval       = 30 * time.Second
	DefaultReconcileInterval    = 5 * time.Second
	DefaultPageSize             = 12
	DefaultPollInterval         = 30 * time.Second
	DefaultPollConcurrency      = 4
	DefaultPollTimeout          = 10 * time.Second
	DefaultHealthTimeout        = 5 * time.Second
	DefaultHealthCacheTTL       = 30 * time.Second
	DefaultHealthInterval       = 30 * time.Second
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultBufferSize           = 10000
	DefaultGatewayPort          = 3000
	DefaultBackendURL           = "http://localhost:8080"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

// DefaultHealthEndpoints are probed relative to Health.BaseURL.
var DefaultHealthEndpoints = []string{"/api/auctions", "/api/auth/login", "/ws"}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.RateLimit > 0 && c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultRateBurst
	}

	// Connection defaults
	if c.Connection.MaxReconnectAttempts == 0 {
		c.Connection.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.HeartbeatOutgoing == 0 {
		c.Connection.HeartbeatOutgoing = DefaultHeartbeat
	}
	if c.Connection.HeartbeatIncoming == 0 {
		c.Connection.HeartbeatIncoming = DefaultHeartbeat
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}

	// Room defaults
	if c.Room.PingInterval == 0 {
		c.Room.PingInterval = DefaultPingInterval
	}
	if c.Room.ResyncInterval == 0 {
		c.Room.ResyncInterval = DefaultResyncInterval
	}

	// Catalog defaults
	if c.Catalog.ReconcileInterval == 0 {
		c.Catalog.ReconcileInterval = DefaultReconcileInterval
	}
	if c.Catalog.PageSize == 0 {
		c.Catalog.PageSize = DefaultPageSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Health defaults
	if c.Health.BaseURL == "" {
		c.Health.BaseURL = originOf(c.API.RestURL)
	}
	if len(c.Health.Endpoints) == 0 {
		c.Health.Endpoints = append([]string(nil), DefaultHealthEndpoints...)
	}
	if c.Health.Timeout == 0 {
		c.Health.Timeout = DefaultHealthTimeout
	}
	if c.Health.CacheTTL == 0 {
		c.Health.CacheTTL = DefaultHealthCacheTTL
	}
	if c.Health.Interval == 0 {
		c.Health.Interval = DefaultHealthInterval
	}

	applyDBDefaults(&c.Database)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Gateway defaults
	if c.Gateway.Port == 0 {
		c.Gateway.Port = DefaultGatewayPort
	}
	if c.Gateway.BackendURL == "" {
		c.Gateway.BackendURL = DefaultBackendURL
	}
	if c.Gateway.BackendWSURL == "" {
		c.Gateway.BackendWSURL = wsURLOf(c.Gateway.BackendURL) + "/ws/websocket"
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// originOf returns scheme://host of raw, or raw unchanged if it does not parse.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

func wsURLOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.Scheme + "://" + u.Host
}
