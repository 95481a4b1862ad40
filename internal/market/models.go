package market

import (
	"sync"
	"time"
)

// DefaultTradeHistorySize is how many trades the dashboard keeps when no size is configured.
const DefaultTradeHistorySize = 20

// Ticker is the rolling 24h statistics for a symbol.
type Ticker struct {
	Symbol             string    `json:"symbol"`
	LastPrice          float64   `json:"lastPrice"`
	PriceChange        float64   `json:"priceChange"`
	PriceChangePercent float64   `json:"priceChangePercent"`
	High24h            float64   `json:"high24h"`
	Low24h             float64   `json:"low24h"`
	BaseVolume         float64   `json:"baseVolume"`
	QuoteVolume        float64   `json:"quoteVolume"`
	EventTime          time.Time `json:"eventTime"`
}

// Direction is "up" for a non-negative 24h change and "down" otherwise.
func (t Ticker) Direction() string {
	if t.PriceChange >= 0 {
		return "up"
	}
	return "down"
}

// Trade is one public trade print.
type Trade struct {
	ID           string    `json:"id"`
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"`
	Time         time.Time `json:"time"`
	BuyerIsMaker bool      `json:"buyerIsMaker"`
}

// Side reports the aggressor: a maker buyer means the taker sold.
func (t Trade) Side() string {
	if t.BuyerIsMaker {
		return "sell"
	}
	return "buy"
}

// TradeHistory keeps the most recent trades, newest first.
type TradeHistory struct {
	mu     sync.RWMutex
	size   int
	trades []Trade
}

func NewTradeHistory(size int) *TradeHistory {
	if size <= 0 {
		size = DefaultTradeHistorySize
	}
	return &TradeHistory{size: size, trades: make([]Trade, 0, size)}
}

// Add puts t at the front and drops whatever falls past the cap.
func (h *TradeHistory) Add(t Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.trades) < h.size {
		h.trades = append(h.trades, Trade{})
	}
	copy(h.trades[1:], h.trades[:len(h.trades)-1])
	h.trades[0] = t
}

// List returns a copy, newest first.
func (h *TradeHistory) List() []Trade {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Trade(nil), h.trades...)
}
