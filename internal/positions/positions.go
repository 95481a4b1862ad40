// Package positions serves the static positions table shown under the chart.
package positions

type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

type Position struct {
	Pair                    string    `json:"pair"`
	Size                    float64   `json:"size"`
	Margin                  float64   `json:"margin"`
	EntryPrice              float64   `json:"entryPrice"`
	MarkPrice               float64   `json:"markPrice"`
	MMR                     float64   `json:"mmr"`
	UnrealizedPNL           float64   `json:"unrealizedPnl"`
	UnrealizedPNLPercentage float64   `json:"unrealizedPnlPercentage"`
	Type                    Direction `json:"type"`
	Leverage                string    `json:"leverage"`
}

// PNLClass is "profit" for a non-negative unrealized PNL and "loss" otherwise.
func (p Position) PNLClass() string {
	if p.UnrealizedPNL >= 0 {
		return "profit"
	}
	return "loss"
}

type Tab struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

var mock = []Position{
	{Pair: "BTC/USDT", Size: 0.92, Margin: 353.22, EntryPrice: 96343.4, MarkPrice: 95432.52, MMR: 3.83, UnrealizedPNL: 89.45, UnrealizedPNLPercentage: 59, Type: Long, Leverage: "10X"},
	{Pair: "ETH/USDT", Size: 5.10, Margin: 150.00, EntryPrice: 1800.23, MarkPrice: 1805.10, MMR: 2.10, UnrealizedPNL: 25.15, UnrealizedPNLPercentage: 15, Type: Long, Leverage: "5X"},
	{Pair: "XRP/USDT", Size: 1500.00, Margin: 50.00, EntryPrice: 0.5200, MarkPrice: 0.5180, MMR: 1.50, UnrealizedPNL: -3.00, UnrealizedPNLPercentage: -6, Type: Short, Leverage: "20X"},
}

// Open orders are not tracked; the tab count is fixed.
const openOrders = 2

// List returns a copy of the mock positions.
func List() []Position {
	return append([]Position(nil), mock...)
}

// Tabs are the table headers with their counts.
func Tabs() []Tab {
	return []Tab{
		{Label: "Positions", Count: len(mock)},
		{Label: "Orders", Count: openOrders},
		{Label: "Balances", Count: 0},
		{Label: "History", Count: 0},
	}
}
