package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

type BinanceOptions struct {
	BaseURL         string // e.g. wss://stream.binance.com:9443/ws
	Symbol          string
	DepthLevels     int // 5, 10 or 20
	DepthIntervalMs int // 100 or 1000
	ReconnectDelay  time.Duration
}

// BinanceFeed consumes the public ticker, partial depth and trade streams for one symbol.
// Each stream has its own connection and reconnects on its own after ReconnectDelay.
type BinanceFeed struct {
	opts   BinanceOptions
	log    *slog.Logger
	dialer websocket.Dialer
	now    func() time.Time
	ping   time.Duration

	events chan Event
	errs   chan error

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
	closed  bool
}

func NewBinanceFeed(opts BinanceOptions, logger *slog.Logger) *BinanceFeed {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.DepthLevels == 0 {
		opts.DepthLevels = 20
	}
	if opts.DepthIntervalMs == 0 {
		opts.DepthIntervalMs = 100
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &BinanceFeed{
		opts:   opts,
		log:    logger.With("component", "binance_feed", "symbol", opts.Symbol),
		dialer: websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		now:    time.Now,
		ping:   pingInterval,
		events: make(chan Event, 1024),
		errs:   make(chan error, 16),
	}
}

func (f *BinanceFeed) Events() <-chan Event { return f.events }
func (f *BinanceFeed) Errors() <-chan error { return f.errs }

// StreamURL builds the raw stream endpoint for one of the Stream* names.
func (f *BinanceFeed) StreamURL(stream string) string {
	sym := strings.ToLower(f.opts.Symbol)
	var name string
	switch stream {
	case StreamTicker:
		name = sym + "@ticker"
	case StreamDepth:
		name = fmt.Sprintf("%s@depth%d", sym, f.opts.DepthLevels)
		if f.opts.DepthIntervalMs == 100 {
			name += "@100ms"
		}
	case StreamTrade:
		name = sym + "@trade"
	}
	return f.opts.BaseURL + "/" + name
}

func (f *BinanceFeed) Run(ctx context.Context, onStatus func(Status)) {
	f.mu.Lock()
	if f.cancel != nil || f.closed {
		f.mu.Unlock()
		return
	}
	ctx, f.cancel = context.WithCancel(ctx)
	f.running.Add(len(Streams))
	f.mu.Unlock()

	for _, s := range Streams {
		go func(stream string) {
			defer f.running.Done()
			f.runStream(ctx, stream, onStatus)
		}(s)
	}
	f.running.Wait()
}

// Close stops every stream and then closes the channels.
func (f *BinanceFeed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	f.running.Wait()
	close(f.errs)
	close(f.events)
}

func (f *BinanceFeed) runStream(ctx context.Context, stream string, onStatus func(Status)) {
	url := f.StreamURL(stream)
	log := f.log.With("stream", stream)
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := f.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			onStatus(Status{Stream: stream, Connected: false, Retrying: true})
			f.emitErr(&StreamError{Stream: stream, Err: fmt.Errorf("dial: %w", err)})
			if !sleep(ctx, f.opts.ReconnectDelay) {
				return
			}
			continue
		}
		log.Info("stream connected", slog.String("url", url))
		onStatus(Status{Stream: stream, Connected: true})

		err = f.readLoop(ctx, conn, stream)
		_ = conn.Close()
		if ctx.Err() != nil {
			onStatus(Status{Stream: stream, Connected: false})
			return
		}
		onStatus(Status{Stream: stream, Connected: false, Retrying: true})
		log.Warn("stream closed, reconnecting",
			slog.String("err", err.Error()),
			slog.Duration("delay", f.opts.ReconnectDelay),
		)
		f.emitErr(&StreamError{Stream: stream, Err: err})
		if !sleep(ctx, f.opts.ReconnectDelay) {
			return
		}
	}
}

func (f *BinanceFeed) readLoop(ctx context.Context, conn *websocket.Conn, stream string) error {
	// Keepalive pings; closing the conn unblocks ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(f.ping)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					f.log.Debug("ping failed", slog.String("stream", stream), slog.String("err", err.Error()))
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		ev, err := f.decode(stream, data)
		if err != nil {
			f.emitErr(&StreamError{Stream: stream, Err: err})
			continue
		}
		select {
		case f.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *BinanceFeed) decode(stream string, data []byte) (Event, error) {
	switch stream {
	case StreamDepth:
		snap, err := DecodeDepth(strings.ToUpper(f.opts.Symbol), data, f.now())
		if err != nil {
			return Event{}, err
		}
		return Event{Stream: stream, Book: &snap}, nil
	case StreamTicker:
		t, err := DecodeTicker(data)
		if err != nil {
			return Event{}, err
		}
		return Event{Stream: stream, Ticker: &t}, nil
	case StreamTrade:
		t, err := DecodeTrade(data)
		if err != nil {
			return Event{}, err
		}
		return Event{Stream: stream, Trade: &t}, nil
	}
	return Event{}, fmt.Errorf("unknown stream %q", stream)
}

func (f *BinanceFeed) emitErr(err error) {
	select {
	case f.errs <- err:
	default:
		// drop if buffer full
	}
}

// sleep waits d or until ctx ends; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
