package state

import (
	"errors"
	"sync"
	"testing"

	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/market"
	"tradedash/internal/orderentry"
)

func newState(t *testing.T) *State {
	t.Helper()
	f, err := orderentry.NewForm(10000, "10X")
	if err != nil {
		t.Fatal(err)
	}
	return NewState(" btcusdt ", 20, f)
}

func TestSymbolNormalization(t *testing.T) {
	s := newState(t)
	if got := s.Symbol(); got != "BTCUSDT" {
		t.Fatalf("symbol got %s want BTCUSDT", got)
	}
}

func TestConnectedNeedsAllStreams(t *testing.T) {
	s := newState(t)
	if s.Connected() {
		t.Fatal("should start disconnected")
	}
	s.SetConnected(feed.StreamTicker, true)
	s.SetConnected(feed.StreamDepth, true)
	if s.Connected() {
		t.Fatal("trade stream still down")
	}
	s.SetConnected(feed.StreamTrade, true)
	if !s.Connected() {
		t.Fatal("all streams up")
	}
	st := s.Streams()
	st[feed.StreamDepth] = false
	if !s.Connected() {
		t.Fatal("Streams must return a copy")
	}
}

func TestBookIsReplacedAndCopied(t *testing.T) {
	s := newState(t)
	b := depth.Book{Bids: []depth.BookEntry{{BucketPrice: 100, Amount: 1, RunningTotal: 1}}}
	s.SetBook(b)
	b.Bids[0].Amount = 99
	if s.Book().Bids[0].Amount != 1 {
		t.Fatal("SetBook must copy")
	}
	got := s.Book()
	got.Bids[0].Amount = 42
	if s.Book().Bids[0].Amount != 1 {
		t.Fatal("Book must copy")
	}
	s.SetBook(depth.Book{Asks: []depth.BookEntry{{BucketPrice: 101, Amount: 2, RunningTotal: 2}}})
	if len(s.Book().Bids) != 0 {
		t.Fatal("book must be replaced wholesale")
	}
}

func TestSelectPricePrefillsForm(t *testing.T) {
	s := newState(t)
	if _, ok := s.SelectedPrice(); ok {
		t.Fatal("no selection expected")
	}
	f := s.SelectPrice(50000)
	if f.Amount != "2.0000" || f.Price != "50000.000" {
		t.Fatalf("form not prefilled: %+v", f)
	}
	if p, ok := s.SelectedPrice(); !ok || p != 50000 {
		t.Fatalf("selected got %v %v", p, ok)
	}
	s.SelectPrice(40000)
	if p, _ := s.SelectedPrice(); p != 40000 {
		t.Fatalf("selection should be overwritten, got %v", p)
	}
	s.ClearSelection()
	if _, ok := s.SelectedPrice(); ok {
		t.Fatal("selection should be cleared")
	}
	if s.Form().Price != "40000.000" {
		t.Fatal("clearing keeps the form")
	}
}

func TestUpdateFormKeepsOldOnError(t *testing.T) {
	s := newState(t)
	before := s.Form()
	got, err := s.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		f.Amount = "5"
		return f, errors.New("nope")
	})
	if err == nil {
		t.Fatal("want error")
	}
	if got != before || s.Form() != before {
		t.Fatal("form must be unchanged")
	}
}

func TestTickerAndTrades(t *testing.T) {
	s := newState(t)
	if _, ok := s.Ticker(); ok {
		t.Fatal("no ticker yet")
	}
	s.SetTicker(market.Ticker{Symbol: "BTCUSDT", LastPrice: 1})
	if tk, ok := s.Ticker(); !ok || tk.LastPrice != 1 {
		t.Fatal("ticker not stored")
	}
	s.AddTrade(market.Trade{ID: "1"})
	s.AddTrade(market.Trade{ID: "2"})
	if tr := s.Trades(); len(tr) != 2 || tr[0].ID != "2" {
		t.Fatalf("trades got %+v", tr)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := newState(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SetBook(depth.Book{LastUpdateID: int64(j)})
				_ = s.Book()
				s.SelectPrice(float64(100 + i))
				s.RecordRejected()
				s.SetConnected(feed.StreamDepth, j%2 == 0)
				_ = s.Connected()
			}
		}(i)
	}
	wg.Wait()
	if s.Rejected() != 800 {
		t.Fatalf("rejected got %d want 800", s.Rejected())
	}
}
