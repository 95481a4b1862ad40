package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tradedash/internal/config"
	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/orderentry"
	"tradedash/internal/pipeline"
	"tradedash/internal/snapshot"
	"tradedash/internal/state"
	"tradedash/internal/tui"
)

func main() {
	_ = godotenv.Load() // best-effort: .env is optional

	cfgPath := flag.String("config", "config.yaml", "path to the yaml config; missing means defaults")
	logPath := flag.String("log", "", "write logs to this file; empty discards them")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *cfgPath, err)
		os.Exit(1)
	}

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		lf, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			os.Exit(1)
		}
		defer lf.Close()
		logOut = lf
	}
	logger := config.NewLoggerTo(logOut, cfg.LogLevel)

	form, err := orderentry.NewForm(cfg.AvailableFunds, cfg.DefaultLeverage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "order form: %v\n", err)
		os.Exit(1)
	}
	st := state.NewState(cfg.Symbol, cfg.TradeHistorySize, form)

	dash, err := tui.New(st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}

	var f feed.Feed
	if cfg.Source == "mock" {
		f = feed.NewMockFeed(feed.NewGenerator(cfg.Symbol, cfg.MockSeed, 0), cfg.MockInterval())
	} else {
		f = feed.NewBinanceFeed(feed.BinanceOptions{
			BaseURL:         cfg.BinanceWSURL,
			Symbol:          cfg.Symbol,
			DepthLevels:     cfg.DepthLevels,
			DepthIntervalMs: cfg.DepthIntervalMs,
			ReconnectDelay:  cfg.ReconnectDelay(),
		}, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(st, depth.NewAggregator(cfg.DisplayLevels), snapshot.Noop{}, nil, logger, dash)
	feedDone := make(chan struct{})
	go func() {
		f.Run(ctx, p.OnStatus)
		close(feedDone)
	}()
	go p.Run(ctx, f)

	runErr := dash.Run(ctx)
	stop()
	<-feedDone
	f.Close()
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "terminal: %v\n", runErr)
		os.Exit(1)
	}
}
