// gateway serves the REST and WebSocket proxy used by browser clients.
// Usage: go run ./cmd/gateway --config configs/client.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bidflow/auction-client/internal/config"
	"github.com/bidflow/auction-client/internal/gateway"
	"github.com/bidflow/auction-client/internal/health"
	"github.com/bidflow/auction-client/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/client.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	logger.Info("starting gateway",
		"version", version.Version,
		"commit", version.Commit,
		"backend", cfg.Gateway.BackendURL,
		"backend_ws", cfg.Gateway.BackendWSURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	checker := health.NewChecker(health.Config{
		BaseURL:   cfg.Gateway.BackendURL,
		Endpoints: cfg.Health.Endpoints,
		Timeout:   cfg.Health.Timeout,
		CacheTTL:  cfg.Health.CacheTTL,
		Interval:  cfg.Health.Interval,
	}, logger)
	if err := checker.Start(ctx); err != nil {
		logger.Error("failed to start health monitoring", "error", err)
		os.Exit(1)
	}

	srv := gateway.New(gateway.Config{
		BackendURL:   cfg.Gateway.BackendURL,
		BackendWSURL: cfg.Gateway.BackendWSURL,
		Timeout:      cfg.API.Timeout,
	}, logger, gateway.WithHealth(checker))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Gateway.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	httpServer.Shutdown(shutdownCtx)
	checker.Stop(shutdownCtx)

	logger.Info("gateway stopped")
}
