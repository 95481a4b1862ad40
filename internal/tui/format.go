package tui

import (
	"fmt"
	"strings"

	"tradedash/internal/depth"
	"tradedash/internal/market"
	"tradedash/internal/orderentry"
	"tradedash/internal/positions"
)

const barRune = '█'

// Bar is a run of block characters proportional to ratio, which is clamped to [0, 1].
func Bar(ratio float64, width int) string {
	if width <= 0 || !(ratio > 0) {
		return ""
	}
	if ratio > 1 {
		ratio = 1
	}
	n := int(ratio*float64(width) + 0.5)
	return strings.Repeat(string(barRune), n)
}

// BookRow is one formatted order book line.
type BookRow struct {
	Text string
	Bar  string
}

// SideRows formats one side. Asks come out worst first so the best ask sits next to the
// spread line; bids keep best first.
func SideRows(entries []depth.BookEntry, side depth.Side, maxDepth float64, barWidth int) []BookRow {
	rows := make([]BookRow, len(entries))
	for i, e := range entries {
		idx := i
		if side == depth.Ask {
			idx = len(entries) - 1 - i
		}
		rows[idx] = BookRow{
			Text: fmt.Sprintf("%10d %12.4f %12.4f ", e.BucketPrice, e.Amount, e.RunningTotal),
			Bar:  Bar(depth.DepthRatio(e, maxDepth), barWidth),
		}
	}
	return rows
}

// BookHeader labels the SideRows columns.
func BookHeader() string {
	return fmt.Sprintf("%10s %12s %12s\n", "Price", "Amount", "Total")
}

// Spread is the line between the two sides, empty when either side is.
func Spread(b depth.Book) string {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return ""
	}
	return fmt.Sprintf("spread %d  (%d / %d)", ask.BucketPrice-bid.BucketPrice, bid.BucketPrice, ask.BucketPrice)
}

func TickerText(t market.Ticker) string {
	sign := "+"
	if t.Direction() == "down" {
		sign = ""
	}
	return fmt.Sprintf("%s  %.2f  %s%.2f (%s%.2f%%)\n24h high %.2f  low %.2f\nvol %.4f  quote %.2f",
		t.Symbol, t.LastPrice, sign, t.PriceChange, sign, t.PriceChangePercent,
		t.High24h, t.Low24h, t.BaseVolume, t.QuoteVolume)
}

func TradeLine(t market.Trade) string {
	return fmt.Sprintf("%s %-4s %12.2f %10.4f", t.Time.Format("15:04:05"), t.Side(), t.Price, t.Amount)
}

func OrderText(v orderentry.View, selected *float64) string {
	sel := "none"
	if selected != nil {
		sel = fmt.Sprintf("%.2f", *selected)
	}
	return fmt.Sprintf("%s / %s  %s\nselected %s\nprice  %s\namount %s\nmargin %s\nslider %.0f%%  %s\nfunds  %.2f",
		v.OrderType, v.MarginMode, v.Leverage,
		sel, v.Price, v.Amount, v.Margin, v.Slider, v.SliderLabel, v.Funds)
}

func PositionLine(p positions.Position) string {
	return fmt.Sprintf("%-9s %-5s %4s size %-9.4f entry %-10.4f mark %-10.4f pnl %+.2f (%+.0f%%)",
		p.Pair, p.Type, p.Leverage, p.Size, p.EntryPrice, p.MarkPrice, p.UnrealizedPNL, p.UnrealizedPNLPercentage)
}

func TabsLine(tabs []positions.Tab) string {
	parts := make([]string, len(tabs))
	for i, t := range tabs {
		parts[i] = fmt.Sprintf("%s (%d)", t.Label, t.Count)
	}
	return strings.Join(parts, " | ")
}

// StatusLine shows each stream in a fixed order.
func StatusLine(streams map[string]bool, order []string) string {
	parts := make([]string, 0, len(order))
	for _, s := range order {
		mark := "down"
		if streams[s] {
			mark = "up"
		}
		parts = append(parts, s+" "+mark)
	}
	return strings.Join(parts, "  ")
}
