package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bidflow/auction-client/internal/health"
)

// Config holds gateway configuration.
type Config struct {
	BackendURL   string        // e.g. http://localhost:8080
	BackendWSURL string        // e.g. ws://localhost:8080/ws/websocket
	Timeout      time.Duration // per proxied request (default: 30s)
}

// HealthSource reports backend health for the /health route.
type HealthSource interface {
	CheckAll(ctx context.Context) []health.Result
}

// Option configures a Server.
type Option func(*Server)

// WithHTTPClient sets the client used for proxied REST requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Server) {
		if hc != nil {
			s.client = hc
		}
	}
}

// WithHealth enables the /health route.
func WithHealth(h HealthSource) Option {
	return func(s *Server) {
		s.health = h
	}
}

// Server is the gateway HTTP handler.
type Server struct {
	cfg      Config
	client   *http.Client
	dialer   *websocket.Dialer
	upgrader websocket.Upgrader
	health   HealthSource
	logger   *slog.Logger
	engine   *gin.Engine
}

// New creates a Server with its routes registered.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // browsers reach the gateway from the app origin
			},
		},
		logger: logger.With("component", "gateway"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		router.Handle(method, "/api/proxy/*path", s.proxyHandler)
	}
	router.GET("/api/ws-proxy", s.wsProxyHandler)
	router.GET("/health", s.healthHandler)

	return router
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results := s.health.CheckAll(ctx)

	status := "healthy"
	code := http.StatusOK
	for i, r := range results {
		if r.Healthy {
			continue
		}
		if i == 0 {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
		status = "degraded"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"results": results,
	})
}
