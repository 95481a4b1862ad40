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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tradedash/internal/assets"
	"tradedash/internal/config"
	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/instrumentation"
	"tradedash/internal/orderentry"
	"tradedash/internal/pipeline"
	"tradedash/internal/server"
	"tradedash/internal/snapshot"
	"tradedash/internal/state"
)

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	cfgPath := flag.String("config", "config.yaml", "path to the yaml config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *cfgPath, err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.LogLevel)

	logger.Info("tradedash starting",
		slog.Int("port", cfg.Port),
		slog.String("symbol", cfg.Symbol),
		slog.String("source", cfg.Source),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// State
	form, err := orderentry.NewForm(cfg.AvailableFunds, cfg.DefaultLeverage)
	if err != nil {
		logger.Error("order form", slog.String("err", err.Error()))
		os.Exit(1)
	}
	st := state.NewState(cfg.Symbol, cfg.TradeHistorySize, form)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := instrumentation.NewMetrics(reg)

	// Hashed static URLs
	am, err := assets.NewManager(cfg.WebDir, server.StaticFiles...)
	if err != nil {
		logger.Warn("asset manager init", slog.String("err", err.Error()))
	}

	// Optional redis mirror
	publisher := snapshotPublisher(ctx, cfg, logger)
	defer publisher.Close()

	f := newFeed(cfg, logger)

	// HTTP server + WS hub
	srv := server.NewHTTPServer(cfg, st, am, metrics, reg, logger)

	// Pipe feed -> aggregator -> state -> hub
	p := pipeline.New(st, depth.NewAggregator(cfg.DisplayLevels), publisher, metrics, logger, srv)
	feedDone := make(chan struct{})
	go func() {
		f.Run(ctx, p.OnStatus)
		close(feedDone)
	}()
	go p.Run(ctx, f)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		logger.Info("HTTP server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("err", err.Error()))
			cancel()
		}
		close(done)
	}()

	// Graceful shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shCtx, shCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shCancel()

	_ = httpSrv.Shutdown(shCtx)
	srv.Close()
	cancel()
	<-feedDone
	f.Close()
	<-done
	logger.Info("bye")
}

func newFeed(cfg config.Config, logger *slog.Logger) feed.Feed {
	if cfg.Source == "mock" {
		gen := feed.NewGenerator(cfg.Symbol, cfg.MockSeed, 0)
		return feed.NewMockFeed(gen, cfg.MockInterval())
	}
	return feed.NewBinanceFeed(feed.BinanceOptions{
		BaseURL:         cfg.BinanceWSURL,
		Symbol:          cfg.Symbol,
		DepthLevels:     cfg.DepthLevels,
		DepthIntervalMs: cfg.DepthIntervalMs,
		ReconnectDelay:  cfg.ReconnectDelay(),
	}, logger)
}

func snapshotPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) snapshot.Publisher {
	if cfg.RedisURL == "" {
		return snapshot.Noop{}
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	p, err := snapshot.NewRedisPublisher(pctx, cfg.RedisURL, cfg.RedisPassword, cfg.SnapshotTTL())
	if err != nil {
		logger.Warn("redis snapshot publisher disabled", slog.String("err", err.Error()))
		return snapshot.Noop{}
	}
	logger.Info("publishing snapshots to redis", slog.Duration("ttl", cfg.SnapshotTTL()))
	return p
}
