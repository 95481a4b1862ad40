package state

import (
	"strings"
	"sync"
	"sync/atomic"

	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/market"
	"tradedash/internal/orderentry"
)

// State is the dashboard's shared view. Writers are the pipeline and the HTTP handlers;
// every getter returns a copy.
type State struct {
	symbol string

	mu        sync.RWMutex
	ticker    market.Ticker
	hasTicker bool
	book      depth.Book
	form      orderentry.Form
	selected  *float64
	streams   map[string]bool

	trades   *market.TradeHistory
	rejected atomic.Int64
}

func NewState(symbol string, historySize int, form orderentry.Form) *State {
	streams := make(map[string]bool, len(feed.Streams))
	for _, name := range feed.Streams {
		streams[name] = false
	}
	return &State{
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		form:    form,
		trades:  market.NewTradeHistory(historySize),
		streams: streams,
	}
}

func (s *State) Symbol() string { return s.symbol }

// SetConnected records one stream's status.
func (s *State) SetConnected(stream string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[stream] = v
}

// Connected is true only when every stream is up.
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, up := range s.streams {
		if !up {
			return false
		}
	}
	return true
}

// Streams returns a copy of the per-stream status.
func (s *State) Streams() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.streams))
	for k, v := range s.streams {
		out[k] = v
	}
	return out
}

func (s *State) SetTicker(t market.Ticker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticker = t
	s.hasTicker = true
}

func (s *State) Ticker() (market.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticker, s.hasTicker
}

// SetBook replaces the displayed book wholesale.
func (s *State) SetBook(b depth.Book) {
	b = b.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book = b
}

func (s *State) Book() depth.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Clone()
}

// RecordRejected counts a snapshot side rejected by the aggregator.
func (s *State) RecordRejected() { s.rejected.Add(1) }
func (s *State) Rejected() int64 { return s.rejected.Load() }

func (s *State) AddTrade(t market.Trade) { s.trades.Add(t) }
func (s *State) Trades() []market.Trade { return s.trades.List() }

// SelectPrice stores a clicked book price and prefills the order form with it.
func (s *State) SelectPrice(p float64) orderentry.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &p
	s.form = s.form.SelectPrice(p)
	return s.form
}

// ClearSelection forgets the selected price; the form keeps its values.
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

func (s *State) SelectedPrice() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return 0, false
	}
	return *s.selected, true
}

func (s *State) Form() orderentry.Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.form
}

// UpdateForm applies fn to the form under the lock. If fn fails the form is unchanged.
func (s *State) UpdateForm(fn func(orderentry.Form) (orderentry.Form, error)) (orderentry.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.form)
	if err != nil {
		return s.form, err
	}
	s.form = next
	return s.form, nil
}
