package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mum4k/termdash/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/market"
	"tradedash/internal/orderentry"
	"tradedash/internal/pipeline"
	"tradedash/internal/positions"
	"tradedash/internal/state"
)

var _ pipeline.Sink = (*Dashboard)(nil)

func TestBar(t *testing.T) {
	assert.Equal(t, "", Bar(0, 10))
	assert.Equal(t, "", Bar(0.5, 0))
	assert.Equal(t, "█████", Bar(0.5, 10))
	assert.Equal(t, strings.Repeat("█", 10), Bar(3, 10))
	assert.Equal(t, "", Bar(-1, 10))
}

func TestSideRowsOrdering(t *testing.T) {
	asks := []depth.BookEntry{
		{BucketPrice: 101, Amount: 1, RunningTotal: 1},
		{BucketPrice: 102, Amount: 1, RunningTotal: 2},
		{BucketPrice: 103, Amount: 2, RunningTotal: 4},
	}
	rows := SideRows(asks, depth.Ask, 4, 8)
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0].Text, "103", "worst ask on top")
	assert.Contains(t, rows[2].Text, "101", "best ask next to the spread")
	assert.Equal(t, strings.Repeat("█", 8), rows[0].Bar)
	assert.Equal(t, strings.Repeat("█", 2), rows[2].Bar)

	bids := []depth.BookEntry{{BucketPrice: 100, Amount: 1, RunningTotal: 1}, {BucketPrice: 99, Amount: 1, RunningTotal: 2}}
	rows = SideRows(bids, depth.Bid, 4, 8)
	assert.Contains(t, rows[0].Text, "100")
	assert.Equal(t, strings.Repeat("█", 4), rows[1].Bar)

	assert.Empty(t, SideRows(nil, depth.Bid, 0, 8))
}

func TestSpread(t *testing.T) {
	b := depth.Book{
		Bids: []depth.BookEntry{{BucketPrice: 100}},
		Asks: []depth.BookEntry{{BucketPrice: 102}},
	}
	assert.Equal(t, "spread 2  (100 / 102)", Spread(b))
	assert.Equal(t, "", Spread(depth.Book{Bids: b.Bids}))
}

func TestTextHelpers(t *testing.T) {
	tk := market.Ticker{Symbol: "BTCUSDT", LastPrice: 95000, PriceChange: -12.5, PriceChangePercent: -0.01}
	assert.True(t, strings.HasPrefix(TickerText(tk), "BTCUSDT  95000.00  -12.50 (-0.01%)"))

	tr := market.Trade{Price: 95000.1, Amount: 0.5, Time: time.Date(2024, 1, 1, 13, 4, 5, 0, time.UTC), BuyerIsMaker: true}
	assert.Equal(t, "13:04:05 sell     95000.10     0.5000", TradeLine(tr))

	assert.Equal(t, "Positions (3) | Orders (2) | Balances (0) | History (0)", TabsLine(positions.Tabs()))
	assert.Contains(t, PositionLine(positions.List()[2]), "pnl -3.00")

	assert.Equal(t, "ticker up  depth down  trade down",
		StatusLine(map[string]bool{"ticker": true}, feed.Streams))
}

func newDashboard(t *testing.T) (*Dashboard, *state.State) {
	t.Helper()
	form, err := orderentry.NewForm(10000, "10X")
	require.NoError(t, err)
	st := state.NewState("BTCUSDT", 20, form)
	d, err := New(st)
	require.NoError(t, err)
	return d, st
}

func TestHandleKeySelectsAndAdjusts(t *testing.T) {
	d, st := newDashboard(t)
	st.SetBook(depth.Book{
		Bids: []depth.BookEntry{{BucketPrice: 50000, Amount: 1, RunningTotal: 1}},
		Asks: []depth.BookEntry{{BucketPrice: 50001, Amount: 1, RunningTotal: 1}},
	})

	assert.False(t, d.HandleKey('b'))
	p, ok := st.SelectedPrice()
	require.True(t, ok)
	assert.Equal(t, 50000.0, p)
	assert.Equal(t, "2.0000", st.Form().Amount)

	d.HandleKey('-')
	assert.Equal(t, 75.0, st.Form().Slider)
	assert.Equal(t, "1.5000", st.Form().Amount)

	d.HandleKey('l')
	assert.Equal(t, "20X", st.Form().Leverage)

	d.HandleKey('c')
	_, ok = st.SelectedPrice()
	assert.False(t, ok)

	assert.True(t, d.HandleKey('q'))
	assert.True(t, d.HandleKey(keyboard.KeyEsc))
	assert.False(t, d.HandleKey('z'))
}

func TestSinkMethodsDoNotPanic(t *testing.T) {
	d, _ := newDashboard(t)
	d.BroadcastStatus(map[string]bool{"ticker": true, "depth": true, "trade": true})
	d.BroadcastTicker(market.Ticker{Symbol: "BTCUSDT", LastPrice: 1})
	d.BroadcastBook(depth.Book{
		Bids:            []depth.BookEntry{{BucketPrice: 1, Amount: 1, RunningTotal: 1}},
		Asks:            []depth.BookEntry{{BucketPrice: 2, Amount: 1, RunningTotal: 1}},
		MaxOverallDepth: 1,
	})
	d.BroadcastBook(depth.Book{})
	tr := market.Trade{ID: "1", Price: 1, Amount: 1}
	d.BroadcastTrade(tr, []market.Trade{tr})
	d.BroadcastError("feed down")
}

func TestBroadcastStatusConcurrent(t *testing.T) {
	d, _ := newDashboard(t)
	var wg sync.WaitGroup
	for _, name := range feed.Streams {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.BroadcastStatus(map[string]bool{name: i%2 == 0})
				d.BroadcastError(name)
			}
		}(name)
	}
	wg.Wait()

	d.BroadcastStatus(map[string]bool{"ticker": true, "depth": true, "trade": true})
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Contains(t, feed.Streams, d.lastErr)
	assert.True(t, d.streams["depth"])
}

func TestNextLeverage(t *testing.T) {
	assert.Equal(t, "10X", nextLeverage("5X"))
	assert.Equal(t, "5X", nextLeverage("100X"))
	assert.Equal(t, "5X", nextLeverage("bogus"))
}
