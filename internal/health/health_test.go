package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.Path {
		case "/api/auctions":
			w.WriteHeader(http.StatusOK)
		case "/api/auth/login":
			w.WriteHeader(http.StatusMethodNotAllowed)
		case "/ws":
			w.WriteHeader(http.StatusBadRequest)
		case "/boom":
			w.WriteHeader(http.StatusBadGateway)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCheckEndpoint(t *testing.T) {
	server := newBackend(t, nil)
	c := NewChecker(Config{BaseURL: server.URL}, nil)

	tests := []struct {
		path        string
		wantHealthy bool
		wantStatus  int
		wantMessage string
	}{
		{"/api/auctions", true, 200, MsgOK},
		{"/api/auth/login", true, 405, MsgClientError},
		{"/missing", true, 404, MsgNotFound},
		{"/boom", false, 502, MsgServerError},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r := c.CheckEndpoint(context.Background(), tt.path)
			assert.Equal(t, tt.wantHealthy, r.Healthy)
			assert.Equal(t, tt.wantStatus, r.Status)
			assert.Equal(t, tt.wantMessage, r.Message)
			assert.Equal(t, server.URL+tt.path, r.Endpoint)
			assert.False(t, r.Timestamp.IsZero())
		})
	}
}

func TestCheckEndpoint_Timeout(t *testing.T) {
	server := newBackend(t, nil)
	c := NewChecker(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)

	r := c.CheckEndpoint(context.Background(), "/slow")
	assert.False(t, r.Healthy)
	assert.Zero(t, r.Status)
	assert.Equal(t, MsgTimeout, r.Message)
}

func TestCheckEndpoint_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewChecker(Config{BaseURL: "http://" + addr}, nil)
	r := c.CheckEndpoint(context.Background(), "/api/auctions")
	assert.False(t, r.Healthy)
	assert.Equal(t, MsgUnreachable, r.Message)
}

func TestCheckAll_CachesResults(t *testing.T) {
	var hits atomic.Int32
	server := newBackend(t, &hits)
	c := NewChecker(Config{BaseURL: server.URL + "/"}, nil)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok := c.Cached()
	assert.False(t, ok)
	assert.False(t, c.IsHealthy())

	results := c.CheckAll(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, server.URL+"/api/auctions", results[0].Endpoint)
	assert.Equal(t, server.URL+"/ws", results[2].Endpoint)

	cached, ok := c.Cached()
	require.True(t, ok)
	assert.Equal(t, server.URL+"/api/auctions", cached.Endpoint)
	assert.True(t, c.IsHealthy())

	now = now.Add(10 * time.Second)
	c.CheckAll(context.Background())
	assert.Equal(t, int32(3), hits.Load(), "results within the TTL should be reused")

	now = now.Add(30 * time.Second)
	c.CheckAll(context.Background())
	assert.Equal(t, int32(6), hits.Load())
}

func TestStartStop(t *testing.T) {
	var hits atomic.Int32
	server := newBackend(t, &hits)
	c := NewChecker(Config{BaseURL: server.URL, Interval: 20 * time.Millisecond}, nil)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return hits.Load() >= 6 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
	assert.Len(t, c.Results(), 3)
}

func TestDeveloperMessage(t *testing.T) {
	c := NewChecker(Config{BaseURL: "http://localhost:8080"}, nil)

	msg := c.DeveloperMessage("/api/auctions", 404)
	assert.Contains(t, msg, "endpoint: http://localhost:8080/api/auctions")
	assert.Contains(t, msg, "curl -I http://localhost:8080/api/auctions")

	msg = c.DeveloperMessage("/ws", 0)
	assert.Contains(t, msg, "start the backend server")
	assert.False(t, strings.Contains(msg, "curl"))

	msg = c.DeveloperMessage("/ws", 500)
	assert.NotContains(t, msg, "how to fix")
}
