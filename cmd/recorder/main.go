// recorder subscribes to the room of every live auction and records bids,
// participant counts and results to PostgreSQL.
// Usage: go run ./cmd/recorder --config configs/recorder.yaml
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
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/bidflow/auction-client/internal/api"
	"github.com/bidflow/auction-client/internal/auth"
	"github.com/bidflow/auction-client/internal/catalog"
	"github.com/bidflow/auction-client/internal/config"
	"github.com/bidflow/auction-client/internal/connection"
	"github.com/bidflow/auction-client/internal/database"
	"github.com/bidflow/auction-client/internal/gateway"
	"github.com/bidflow/auction-client/internal/metrics"
	"github.com/bidflow/auction-client/internal/model"
	"github.com/bidflow/auction-client/internal/poller"
	"github.com/bidflow/auction-client/internal/recorder"
	"github.com/bidflow/auction-client/internal/router"
	"github.com/bidflow/auction-client/internal/version"
	"github.com/bidflow/auction-client/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/recorder.yaml", "path to config file")
	healthPort := flag.Int("health-port", 8081, "port for /health and /stats")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.ValidateDatabase(); err != nil {
		slog.Error("invalid database config", "error", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := run(cfg, *healthPort, logger); err != nil {
		logger.Error("recorder failed", "error", err)
		os.Exit(1)
	}
	logger.Info("recorder stopped")
}

func run(cfg *config.Config, healthPort int, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready")

	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	)

	// Rooms are public; a login only matters if the backend requires one.
	if cfg.Auth.Email != "" {
		creds, err := auth.LoadCredentials(cfg.Auth.Email, cfg.Auth.Password)
		if err != nil {
			return fmt.Errorf("credentials: %w", err)
		}
		if _, err := auth.NewSession(apiClient, logger).Login(ctx, *creds); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	registry := catalog.NewRegistry(catalog.Config{
		ReconcileInterval:  cfg.Catalog.ReconcileInterval,
		InitialLoadTimeout: 30 * time.Second,
	}, apiClient, logger)

	connMgr := connection.NewManager(
		connection.ManagerConfigFrom(cfg.API, cfg.Connection, apiClient.Jar()),
		logger,
	)

	tracker := recorder.NewTracker(recorder.Config{
		BufferSize: cfg.Writers.BufferSize,
		EndGrace:   time.Minute,
	}, connMgr, logger)

	rtr := router.NewRouter(router.DefaultRouterConfig(), tracker.Messages(), logger)
	buffers := rtr.Buffers()

	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	writers := []*writer.Writer{
		writer.NewBidWriter(writerCfg, buffers.Bid, pool, logger),
		writer.NewParticipantWriter(writerCfg, buffers.Participant, pool, logger),
		writer.NewResultWriter(writerCfg, buffers.End, pool, logger),
	}

	// Bids missed while disconnected are recovered from REST snapshots; the
	// unique (auction_id, amount) index drops the ones already recorded.
	snapshots := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}, apiClient, tracker, poller.SnapshotHandlerFunc(func(a model.Auction) error {
		if ev, ok := recorder.SnapshotBid(a, time.Now()); ok {
			buffers.Bid.Send(ev)
		}
		return nil
	}), logger)

	stats := metrics.NewRegistry()
	stats.Register("connection", func() any {
		return map[string]any{"status": connMgr.Status(), "counters": connMgr.Stats()}
	})
	stats.Register("tracker", func() any { return tracker.Stats() })
	stats.Register("router", func() any { return rtr.Stats() })
	for _, w := range writers {
		stats.Register("writer."+w.Table(), func() any { return w.Stats() })
	}

	// Serves /health and /stats once everything is running
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", healthPort),
		Handler: healthHandler(pool, registry, connMgr, stats, logger),
	}

	// Start in dependency order: sinks before sources. The pipeline ignores
	// the signal and is stopped explicitly below, after its sources.
	pipelineCtx := context.WithoutCancel(ctx)
	for _, w := range writers {
		if err := w.Start(pipelineCtx); err != nil {
			return fmt.Errorf("start %s writer: %w", w.Table(), err)
		}
	}
	if err := rtr.Start(pipelineCtx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	logger.Info("connecting to websocket", "url", cfg.API.WSURL)
	if err := connMgr.Connect(ctx); err != nil {
		// The manager keeps retrying with backoff; subscriptions are
		// registered now and sent once connected.
		logger.Warn("initial websocket connect failed", "error", err)
	}
	var wasConnected atomic.Bool
	wasConnected.Store(connMgr.Status().Connected)
	connMgr.OnStateChange(func(s connection.Status) {
		if prev := wasConnected.Swap(s.Connected); s.Connected && !prev {
			snapshots.Trigger()
		}
	})

	logger.Info("starting catalog (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("start catalog: %w", err)
	}
	tracker.Sync(registry.Live())
	logger.Info("catalog ready",
		"auctions", len(registry.Auctions()),
		"live", len(registry.Live()),
	)

	if err := snapshots.Start(ctx); err != nil {
		return fmt.Errorf("start snapshot poller: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", healthPort)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		tracker.Run(gctx, registry.Changes())
		return nil
	})
	g.Go(func() error {
		logRejections(gctx, buffers.Rejected, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		logger.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		healthServer.Shutdown(shutdownCtx)
		registry.Stop(shutdownCtx)
		snapshots.Stop(shutdownCtx)
		tracker.Close()
		rtr.Stop(shutdownCtx)
		for _, w := range writers {
			if err := w.Stop(shutdownCtx); err != nil {
				logger.Warn("writer stop", "table", w.Table(), "error", err)
			}
		}
		connMgr.Stop(shutdownCtx)
		return nil
	})

	logger.Info("recorder running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", healthPort),
	)
	return g.Wait()
}

// logRejections logs failed-bid notices; they are not persisted.
func logRejections(ctx context.Context, buf *router.GrowableBuffer[router.Event], logger *slog.Logger) {
	for {
		ev, err := buf.Receive(ctx)
		if err != nil {
			return
		}
		logger.Info("bid rejected",
			"auction_id", ev.AuctionID,
			"user_uuid", ev.UserUUID,
			"message", ev.Message,
		)
	}
}

// healthHandler serves /health and /stats.
func healthHandler(
	pool *pgxpool.Pool,
	registry catalog.Registry,
	connMgr connection.Manager,
	stats *metrics.Registry,
	logger *slog.Logger,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gateway.RequestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := "healthy"
		components := gin.H{}

		if err := pool.Ping(ctx); err != nil {
			status = "unhealthy"
			components["postgres"] = gin.H{"status": "disconnected", "error": err.Error()}
		} else {
			components["postgres"] = "connected"
		}

		conn := connMgr.Status()
		components["websocket"] = conn
		if !conn.Connected {
			status = "unhealthy"
		}

		live := len(registry.Live())
		components["catalog"] = gin.H{
			"auctions":  len(registry.Auctions()),
			"live":      live,
			"last_sync": registry.LastSync(),
		}
		if live == 0 && status == "healthy" {
			status = "degraded"
		}

		code := http.StatusOK
		if status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "components": components})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Snapshot())
	})

	return r
}
