package config

import "time"

// Config is the root configuration shared by all executables.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Connection ConnectionConfig `yaml:"connection"`
	Room       RoomConfig       `yaml:"room"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Poller     PollerConfig     `yaml:"poller"`
	Health     HealthConfig     `yaml:"health"`
	Database   DBConfig         `yaml:"database"`
	Writers    WritersConfig    `yaml:"writers"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig holds backend REST and WebSocket settings.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"` // e.g. http://localhost:8080/api
	WSURL        string        `yaml:"ws_url"`   // e.g. http://localhost:8080/ws (SockJS endpoint)
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"` // 0 = no retries
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst    int           `yaml:"rate_burst"`
}

// AuthConfig holds login credentials for the CLI tools.
type AuthConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// ConnectionConfig holds STOMP connection manager settings.
type ConnectionConfig struct {
	DisableSockJS        bool          `yaml:"disable_sockjs"` // dial ws_url as-is instead of {ws_url}/websocket
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	HeartbeatOutgoing    time.Duration `yaml:"heartbeat_outgoing"`
	HeartbeatIncoming    time.Duration `yaml:"heartbeat_incoming"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
}

// RoomConfig holds auction room settings.
type RoomConfig struct {
	PingInterval   time.Duration `yaml:"ping_interval"`
	ResyncInterval time.Duration `yaml:"resync_interval"`
}

// CatalogConfig holds auction catalog settings.
type CatalogConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	PageSize          int           `yaml:"page_size"`
}

// PollerConfig holds auction snapshot poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HealthConfig holds backend health checker settings.
type HealthConfig struct {
	BaseURL   string        `yaml:"base_url"` // defaults to the scheme+host of api.rest_url
	Endpoints []string      `yaml:"endpoints"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
	Interval  time.Duration `yaml:"interval"`
}

// DBConfig holds the recorder's PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// GatewayConfig holds the proxy server settings.
type GatewayConfig struct {
	Port         int    `yaml:"port"`
	BackendURL   string `yaml:"backend_url"`    // e.g. http://localhost:8080
	BackendWSURL string `yaml:"backend_ws_url"` // e.g. ws://localhost:8080/ws/websocket
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
