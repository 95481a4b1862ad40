package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradedash/internal/depth"
	"tradedash/internal/market"
)

// mockNamespace scopes the deterministic trade IDs of the generator.
var mockNamespace = uuid.MustParse("6f1c2a5e-8a51-4a53-9d7e-2f0c6b1f4e21")

// Generator produces a random-walk market. Two generators with the same seed produce the
// same sequence of ticks.
type Generator struct {
	symbol string
	seed   uint64
	rng    *rand.Rand

	open   float64
	mid    float64
	high   float64
	low    float64
	base   float64
	quote  float64
	trades uint64
	update int64
}

// Tick is everything the generator emits for one interval.
type Tick struct {
	Ticker market.Ticker
	Book   depth.Snapshot
	Trades []market.Trade
}

func NewGenerator(symbol string, seed uint64, startPrice float64) *Generator {
	if startPrice <= 0 {
		startPrice = 95000
	}
	return &Generator{
		symbol: symbol,
		seed:   seed,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		open:   startPrice,
		mid:    startPrice,
		high:   startPrice,
		low:    startPrice,
	}
}

// Next advances the walk one step and stamps everything with now.
func (g *Generator) Next(now time.Time) Tick {
	g.mid = math.Max(1, g.mid+g.rng.NormFloat64()*g.mid*0.0002)
	g.update++

	trades := make([]market.Trade, 0, 3)
	for i, n := 0, 1+g.rng.IntN(3); i < n; i++ {
		trades = append(trades, g.trade(now))
	}

	g.high = math.Max(g.high, g.mid)
	g.low = math.Min(g.low, g.mid)
	change := g.mid - g.open
	tk := market.Ticker{
		Symbol:             g.symbol,
		LastPrice:          g.mid,
		PriceChange:        change,
		PriceChangePercent: change / g.open * 100,
		High24h:            g.high,
		Low24h:             g.low,
		BaseVolume:         g.base,
		QuoteVolume:        g.quote,
		EventTime:          now,
	}

	return Tick{Ticker: tk, Book: g.book(now), Trades: trades}
}

// book lays 20 raw levels per side at fractional steps so several land in one integer bucket.
func (g *Generator) book(now time.Time) depth.Snapshot {
	const levels = 20
	bids := make([]depth.PriceLevel, 0, levels)
	asks := make([]depth.PriceLevel, 0, levels)
	bp, ap := g.mid-0.01, g.mid+0.01
	for i := 0; i < levels; i++ {
		bids = append(bids, depth.PriceLevel{Price: round2(bp), Size: g.size()})
		asks = append(asks, depth.PriceLevel{Price: round2(ap), Size: g.size()})
		bp -= 0.1 + g.rng.Float64()*0.9
		ap += 0.1 + g.rng.Float64()*0.9
	}
	return depth.Snapshot{
		Symbol:       g.symbol,
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: g.update,
		Received:     now,
	}
}

func (g *Generator) trade(now time.Time) market.Trade {
	g.trades++
	price := round2(g.mid + (g.rng.Float64()-0.5)*2)
	amount := math.Round(g.rng.Float64()*0.5*1e4) / 1e4
	g.base += amount
	g.quote += amount * price
	return market.Trade{
		ID:           uuid.NewSHA1(mockNamespace, []byte(fmt.Sprintf("%d/%d", g.seed, g.trades))).String(),
		Price:        price,
		Amount:       amount,
		Time:         now,
		BuyerIsMaker: g.rng.IntN(2) == 1,
	}
}

func (g *Generator) size() float64 {
	return math.Round(g.rng.Float64()*2*1e4) / 1e4
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// MockFeed runs a Generator on a timer. It stands in for the exchange when no network is
// wanted; all three streams report connected while it runs.
type MockFeed struct {
	gen      *Generator
	interval time.Duration
	now      func() time.Time

	events chan Event
	errs   chan error

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
	closed  bool
}

func NewMockFeed(gen *Generator, interval time.Duration) *MockFeed {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &MockFeed{
		gen:      gen,
		interval: interval,
		now:      time.Now,
		events:   make(chan Event, 256),
		errs:     make(chan error, 1),
	}
}

func (m *MockFeed) Events() <-chan Event { return m.events }
func (m *MockFeed) Errors() <-chan error { return m.errs }

func (m *MockFeed) Run(ctx context.Context, onStatus func(Status)) {
	m.mu.Lock()
	if m.cancel != nil || m.closed {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.running.Add(1)
	m.mu.Unlock()
	defer m.running.Done()

	for _, s := range Streams {
		onStatus(Status{Stream: s, Connected: true})
	}
	defer func() {
		for _, s := range Streams {
			onStatus(Status{Stream: s, Connected: false})
		}
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := m.gen.Next(m.now())
			if !m.send(ctx, Event{Stream: StreamTicker, Ticker: &tick.Ticker}) ||
				!m.send(ctx, Event{Stream: StreamDepth, Book: &tick.Book}) {
				return
			}
			for i := range tick.Trades {
				if !m.send(ctx, Event{Stream: StreamTrade, Trade: &tick.Trades[i]}) {
					return
				}
			}
		}
	}
}

func (m *MockFeed) send(ctx context.Context, ev Event) bool {
	select {
	case m.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *MockFeed) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.running.Wait()
	close(m.errs)
	close(m.events)
}
