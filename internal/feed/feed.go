// Package feed delivers raw market data (depth snapshots, 24h ticker, trades) from a live
// exchange or a local generator.
package feed

import (
	"context"
	"fmt"
	"sync"

	"tradedash/internal/depth"
	"tradedash/internal/market"
)

// Stream names. They match the keys the dashboard state tracks.
const (
	StreamTicker = "ticker"
	StreamDepth  = "depth"
	StreamTrade  = "trade"
)

// Streams lists every stream a feed reports status for.
var Streams = []string{StreamTicker, StreamDepth, StreamTrade}

// Event carries exactly one of Book, Ticker or Trade.
type Event struct {
	Stream string
	Book   *depth.Snapshot
	Ticker *market.Ticker
	Trade  *market.Trade
}

// Status is a connection change on one stream. Retrying marks a drop the feed will
// reconnect from; a stream going down on shutdown leaves it false.
type Status struct {
	Stream    string
	Connected bool
	Retrying  bool
}

type Feed interface {
	// Run blocks until ctx ends, reporting connection changes through onStatus.
	Run(ctx context.Context, onStatus func(Status))
	Events() <-chan Event
	Errors() <-chan error
	Close()
}

// StreamError tags an error with the stream it came from.
type StreamError struct {
	Stream string
	Err    error
}

func (e *StreamError) Error() string { return fmt.Sprintf("%s stream: %v", e.Stream, e.Err) }
func (e *StreamError) Unwrap() error { return e.Err }

// ---------- Manual feed (handy for integration tests & demos) ----------

// ManualFeed emits only what the caller sends.
type ManualFeed struct {
	events chan Event
	errs   chan error
	once   sync.Once
}

func NewManualFeed() *ManualFeed {
	return &ManualFeed{
		events: make(chan Event, 16),
		errs:   make(chan error, 16),
	}
}

func (m *ManualFeed) Run(ctx context.Context, onStatus func(Status)) {
	for _, s := range Streams {
		onStatus(Status{Stream: s, Connected: true})
	}
	<-ctx.Done()
	for _, s := range Streams {
		onStatus(Status{Stream: s, Connected: false})
	}
}

func (m *ManualFeed) Events() <-chan Event { return m.events }
func (m *ManualFeed) Errors() <-chan error { return m.errs }

func (m *ManualFeed) Close() {
	m.once.Do(func() {
		close(m.events)
		close(m.errs)
	})
}

// Helpers for tests
func (m *ManualFeed) SendBook(s depth.Snapshot) { m.events <- Event{Stream: StreamDepth, Book: &s} }
func (m *ManualFeed) SendTicker(t market.Ticker) { m.events <- Event{Stream: StreamTicker, Ticker: &t} }
func (m *ManualFeed) SendTrade(t market.Trade) { m.events <- Event{Stream: StreamTrade, Trade: &t} }
func (m *ManualFeed) SendError(stream string, err error) {
	m.errs <- &StreamError{Stream: stream, Err: err}
}
