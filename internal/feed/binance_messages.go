package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradedash/internal/depth"
	"tradedash/internal/market"
)

// partialDepth is the <symbol>@depth<N>@<I>ms payload: a full top-N book each time.
type partialDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type tickerMsg struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	PriceChange string `json:"p"`
	ChangePct   string `json:"P"`
	LastPrice   string `json:"c"`
	High        string `json:"h"`
	Low         string `json:"l"`
	BaseVolume  string `json:"v"`
	QuoteVolume string `json:"q"`
}

type tradeMsg struct {
	Event        string `json:"e"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// DecodeDepth parses a partial book depth message into a raw snapshot. Any bad field fails
// the whole message.
func DecodeDepth(symbol string, data []byte, received time.Time) (depth.Snapshot, error) {
	var msg partialDepth
	if err := json.Unmarshal(data, &msg); err != nil {
		return depth.Snapshot{}, fmt.Errorf("decode depth: %w", err)
	}
	if msg.Bids == nil && msg.Asks == nil {
		return depth.Snapshot{}, errors.New("decode depth: no bids or asks")
	}
	bids, err := decodeLevels(msg.Bids)
	if err != nil {
		return depth.Snapshot{}, fmt.Errorf("decode depth bids: %w", err)
	}
	asks, err := decodeLevels(msg.Asks)
	if err != nil {
		return depth.Snapshot{}, fmt.Errorf("decode depth asks: %w", err)
	}
	return depth.Snapshot{
		Symbol:       symbol,
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: msg.LastUpdateID,
		Received:     received,
	}, nil
}

func decodeLevels(rows [][2]string) ([]depth.PriceLevel, error) {
	out := make([]depth.PriceLevel, 0, len(rows))
	for i, r := range rows {
		p, err := parseNum(r[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		q, err := parseNum(r[1])
		if err != nil {
			return nil, fmt.Errorf("level %d size: %w", i, err)
		}
		out = append(out, depth.PriceLevel{Price: p, Size: q})
	}
	return out, nil
}

type numField struct {
	name string
	raw  string
	dst  *float64
}

// DecodeTicker parses a 24hrTicker event.
func DecodeTicker(data []byte) (market.Ticker, error) {
	var msg tickerMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return market.Ticker{}, fmt.Errorf("decode ticker: %w", err)
	}
	if msg.Event != "24hrTicker" {
		return market.Ticker{}, fmt.Errorf("decode ticker: unexpected event %q", msg.Event)
	}
	var t market.Ticker
	fields := []numField{
		{"c", msg.LastPrice, &t.LastPrice},
		{"p", msg.PriceChange, &t.PriceChange},
		{"P", msg.ChangePct, &t.PriceChangePercent},
		{"h", msg.High, &t.High24h},
		{"l", msg.Low, &t.Low24h},
		{"v", msg.BaseVolume, &t.BaseVolume},
		{"q", msg.QuoteVolume, &t.QuoteVolume},
	}
	for _, f := range fields {
		v, err := parseNum(f.raw)
		if err != nil {
			return market.Ticker{}, fmt.Errorf("decode ticker %s: %w", f.name, err)
		}
		*f.dst = v
	}
	t.Symbol = msg.Symbol
	t.EventTime = time.UnixMilli(msg.EventTime)
	return t, nil
}

// DecodeTrade parses a trade event.
func DecodeTrade(data []byte) (market.Trade, error) {
	var msg tradeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return market.Trade{}, fmt.Errorf("decode trade: %w", err)
	}
	if msg.Event != "trade" {
		return market.Trade{}, fmt.Errorf("decode trade: unexpected event %q", msg.Event)
	}
	p, err := parseNum(msg.Price)
	if err != nil {
		return market.Trade{}, fmt.Errorf("decode trade price: %w", err)
	}
	q, err := parseNum(msg.Quantity)
	if err != nil {
		return market.Trade{}, fmt.Errorf("decode trade qty: %w", err)
	}
	return market.Trade{
		ID:           strconv.FormatInt(msg.TradeID, 10),
		Price:        p,
		Amount:       q,
		Time:         time.UnixMilli(msg.TradeTime),
		BuyerIsMaker: msg.BuyerIsMaker,
	}, nil
}

// parseNum reads a string-encoded decimal. NaN and Inf spellings are rejected here; an
// exponent beyond float64 range still comes back as ±Inf and is left to the aggregator.
func parseNum(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
