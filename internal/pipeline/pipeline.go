// Package pipeline moves feed events into the dashboard state and out to the display sinks.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/instrumentation"
	"tradedash/internal/market"
	"tradedash/internal/snapshot"
	"tradedash/internal/state"
)

// Sink is a display layer. Ticker, book, trade and error calls come from the pipeline
// goroutine. BroadcastStatus arrives from the feed's stream goroutines and may run
// concurrently with every other method.
type Sink interface {
	BroadcastStatus(streams map[string]bool)
	BroadcastTicker(t market.Ticker)
	BroadcastBook(b depth.Book)
	BroadcastTrade(t market.Trade, history []market.Trade)
	BroadcastError(msg string)
}

type Pipeline struct {
	st        *state.State
	agg       *depth.Aggregator
	publisher snapshot.Publisher
	metrics   *instrumentation.Metrics
	log       *slog.Logger
	sinks     []Sink
}

func New(st *state.State, agg *depth.Aggregator, publisher snapshot.Publisher, metrics *instrumentation.Metrics, logger *slog.Logger, sinks ...Sink) *Pipeline {
	if publisher == nil {
		publisher = snapshot.Noop{}
	}
	return &Pipeline{
		st:        st,
		agg:       agg,
		publisher: publisher,
		metrics:   metrics,
		log:       logger.With("component", "pipeline"),
		sinks:     sinks,
	}
}

// OnStatus is the feed's status callback. A drop on a stream that was up counts as a
// reconnect only when the feed is going to retry it.
func (p *Pipeline) OnStatus(s feed.Status) {
	was := p.st.Streams()[s.Stream]
	p.st.SetConnected(s.Stream, s.Connected)
	if was && !s.Connected && s.Retrying && p.metrics != nil {
		p.metrics.RecordReconnect(s.Stream)
	}
	streams := p.st.Streams()
	for _, sk := range p.sinks {
		sk.BroadcastStatus(streams)
	}
}

// Run handles events one at a time until ctx ends or the feed closes its events channel.
func (p *Pipeline) Run(ctx context.Context, f feed.Feed) {
	errs := f.Errors()
	for {
		select {
		case ev, ok := <-f.Events():
			if !ok {
				return
			}
			p.Handle(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.handleFeedError(err)
		case <-ctx.Done():
			return
		}
	}
}

// Handle processes a single event synchronously.
func (p *Pipeline) Handle(ctx context.Context, ev feed.Event) {
	switch {
	case ev.Book != nil:
		p.handleBook(ctx, *ev.Book)
	case ev.Ticker != nil:
		p.st.SetTicker(*ev.Ticker)
		for _, sk := range p.sinks {
			sk.BroadcastTicker(*ev.Ticker)
		}
		if err := p.publisher.PublishTicker(ctx, p.st.Symbol(), *ev.Ticker); err != nil {
			p.log.Warn("publish ticker", slog.String("err", err.Error()))
		}
	case ev.Trade != nil:
		p.st.AddTrade(*ev.Trade)
		if p.metrics != nil {
			p.metrics.RecordTrade()
		}
		history := p.st.Trades()
		for _, sk := range p.sinks {
			sk.BroadcastTrade(*ev.Trade, history)
		}
	}
}

func (p *Pipeline) handleBook(ctx context.Context, snap depth.Snapshot) {
	start := time.Now()
	prev := p.st.Book()
	book, err := p.agg.Process(prev, snap)
	if err != nil && p.rejected(err) == 2 {
		return
	}
	p.st.SetBook(book)
	if p.metrics != nil && err == nil {
		p.metrics.RecordAggregated(float64(time.Since(start).Microseconds()), book.MaxOverallDepth)
	}
	for _, sk := range p.sinks {
		sk.BroadcastBook(book)
	}
	if err := p.publisher.PublishBook(ctx, book); err != nil {
		p.log.Warn("publish book", slog.String("err", err.Error()))
	}
}

// rejected logs and counts every side the aggregator refused and returns how many there were.
func (p *Pipeline) rejected(err error) int {
	var sides []string
	for _, e := range unwrapAll(err) {
		var ile *depth.InvalidLevelError
		if errors.As(e, &ile) {
			sides = append(sides, string(ile.Side))
			p.st.RecordRejected()
			if p.metrics != nil {
				p.metrics.RecordRejected(string(ile.Side))
			}
		}
	}
	p.log.Warn("snapshot side rejected, keeping last good book",
		slog.Any("sides", sides),
		slog.String("err", err.Error()),
	)
	for _, sk := range p.sinks {
		sk.BroadcastError(err.Error())
	}
	return len(sides)
}

func (p *Pipeline) handleFeedError(err error) {
	stream := "unknown"
	var se *feed.StreamError
	if errors.As(err, &se) {
		stream = se.Stream
	}
	p.log.Error("feed error", slog.String("stream", stream), slog.String("err", err.Error()))
	if p.metrics != nil {
		p.metrics.RecordFeedError(stream)
	}
	for _, sk := range p.sinks {
		sk.BroadcastError(err.Error())
	}
}

func unwrapAll(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
