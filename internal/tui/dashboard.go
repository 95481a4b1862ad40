// Package tui renders the dashboard in a terminal with termdash.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mum4k/termdash"
	"github.com/mum4k/termdash/cell"
	"github.com/mum4k/termdash/container"
	"github.com/mum4k/termdash/container/grid"
	"github.com/mum4k/termdash/keyboard"
	"github.com/mum4k/termdash/linestyle"
	"github.com/mum4k/termdash/terminal/tcell"
	"github.com/mum4k/termdash/terminal/terminalapi"
	"github.com/mum4k/termdash/widgets/text"

	"tradedash/internal/depth"
	"tradedash/internal/feed"
	"tradedash/internal/market"
	"tradedash/internal/orderentry"
	"tradedash/internal/positions"
	"tradedash/internal/state"
)

const (
	redrawInterval = 250 * time.Millisecond
	barWidth       = 20
	sliderStep     = 25
)

type Dashboard struct {
	st *state.State

	ticker    *text.Text
	status    *text.Text
	asks      *text.Text
	bids      *text.Text
	trades    *text.Text
	order     *text.Text
	positions *text.Text

	mu      sync.Mutex
	streams map[string]bool
	lastErr string
}

func New(st *state.State) (*Dashboard, error) {
	d := &Dashboard{st: st, streams: st.Streams()}
	for _, w := range []**text.Text{&d.ticker, &d.status, &d.asks, &d.bids, &d.trades, &d.order, &d.positions} {
		t, err := text.New()
		if err != nil {
			return nil, fmt.Errorf("create text widget: %w", err)
		}
		*w = t
	}
	d.renderStatus()
	d.renderOrder()
	d.renderPositions()
	return d, nil
}

// --------- Sink ----------

func (d *Dashboard) BroadcastStatus(streams map[string]bool) {
	d.mu.Lock()
	d.streams = streams
	d.mu.Unlock()
	d.renderStatus()
}

func (d *Dashboard) BroadcastTicker(t market.Ticker) {
	color := cell.ColorGreen
	if t.Direction() == "down" {
		color = cell.ColorRed
	}
	d.ticker.Reset()
	_ = d.ticker.Write(TickerText(t), text.WriteCellOpts(cell.FgColor(color)))
}

func (d *Dashboard) BroadcastBook(b depth.Book) {
	writeSide(d.asks, SideRows(b.Asks, depth.Ask, b.MaxOverallDepth, barWidth), cell.ColorRed)
	writeSide(d.bids, SideRows(b.Bids, depth.Bid, b.MaxOverallDepth, barWidth), cell.ColorGreen)
	if s := Spread(b); s != "" {
		_ = d.bids.Write(s + "\n")
	}
}

func writeSide(w *text.Text, rows []BookRow, color cell.Color) {
	w.Reset()
	_ = w.Write(BookHeader())
	for _, r := range rows {
		_ = w.Write(r.Text)
		_ = w.Write(r.Bar+"\n", text.WriteCellOpts(cell.FgColor(color)))
	}
}

func (d *Dashboard) BroadcastTrade(_ market.Trade, history []market.Trade) {
	d.trades.Reset()
	for _, t := range history {
		color := cell.ColorGreen
		if t.Side() == "sell" {
			color = cell.ColorRed
		}
		_ = d.trades.Write(TradeLine(t)+"\n", text.WriteCellOpts(cell.FgColor(color)))
	}
}

func (d *Dashboard) BroadcastError(msg string) {
	d.mu.Lock()
	d.lastErr = msg
	d.mu.Unlock()
	d.renderStatus()
}

// --------- Rendering ----------

// renderStatus holds mu across Reset and Write so concurrent stream updates never interleave.
func (d *Dashboard) renderStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.status.Reset()
	_ = d.status.Write(StatusLine(d.streams, feed.Streams) + "   [a]sk [b]id [c]lear [+/-] slider [l]everage [q]uit\n")
	if d.lastErr != "" {
		_ = d.status.Write(d.lastErr, text.WriteCellOpts(cell.FgColor(cell.ColorRed)))
	}
}

func (d *Dashboard) renderOrder() {
	var selected *float64
	if p, ok := d.st.SelectedPrice(); ok {
		selected = &p
	}
	d.order.Reset()
	_ = d.order.Write(OrderText(d.st.Form().View(), selected))
}

func (d *Dashboard) renderPositions() {
	d.positions.Reset()
	_ = d.positions.Write(TabsLine(positions.Tabs()) + "\n")
	for _, p := range positions.List() {
		color := cell.ColorGreen
		if p.PNLClass() == "loss" {
			color = cell.ColorRed
		}
		_ = d.positions.Write(PositionLine(p)+"\n", text.WriteCellOpts(cell.FgColor(color)))
	}
}

// --------- Keys ----------

// HandleKey applies a key press to the order panel and reports whether it asks to quit.
func (d *Dashboard) HandleKey(k keyboard.Key) bool {
	switch k {
	case 'q', 'Q', keyboard.KeyEsc:
		return true
	case 'b':
		if e, ok := d.st.Book().BestBid(); ok {
			d.st.SelectPrice(float64(e.BucketPrice))
		}
	case 'a':
		if e, ok := d.st.Book().BestAsk(); ok {
			d.st.SelectPrice(float64(e.BucketPrice))
		}
	case 'c':
		d.st.ClearSelection()
	case '+', '=':
		d.nudgeSlider(sliderStep)
	case '-':
		d.nudgeSlider(-sliderStep)
	case 'l':
		_, _ = d.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
			return f.SetLeverage(nextLeverage(f.Leverage))
		})
	default:
		return false
	}
	d.renderOrder()
	return false
}

func (d *Dashboard) nudgeSlider(step float64) {
	_, _ = d.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		return f.SetSlider(f.Slider + step), nil
	})
}

func nextLeverage(cur string) string {
	for i, l := range orderentry.Leverages {
		if l == cur {
			return orderentry.Leverages[(i+1)%len(orderentry.Leverages)]
		}
	}
	return orderentry.Leverages[0]
}

// --------- Layout ----------

func (d *Dashboard) layout() ([]container.Option, error) {
	builder := grid.New()
	builder.Add(
		grid.RowHeightPerc(15,
			grid.ColWidthPerc(40,
				grid.Widget(d.ticker, container.Border(linestyle.Light), container.BorderTitle(" Ticker ")),
			),
			grid.ColWidthPerc(60,
				grid.Widget(d.status, container.Border(linestyle.Light), container.BorderTitle(" Streams ")),
			),
		),
		grid.RowHeightPerc(60,
			grid.ColWidthPerc(40,
				grid.RowHeightPerc(50,
					grid.Widget(d.asks, container.Border(linestyle.Light), container.BorderTitle(" Asks ")),
				),
				grid.RowHeightPerc(50,
					grid.Widget(d.bids, container.Border(linestyle.Light), container.BorderTitle(" Bids ")),
				),
			),
			grid.ColWidthPerc(30,
				grid.Widget(d.trades, container.Border(linestyle.Light), container.BorderTitle(" Trades ")),
			),
			grid.ColWidthPerc(30,
				grid.Widget(d.order, container.Border(linestyle.Light), container.BorderTitle(" Order ")),
			),
		),
		grid.RowHeightPerc(25,
			grid.Widget(d.positions, container.Border(linestyle.Light), container.BorderTitle(" Positions ")),
		),
	)
	return builder.Build()
}

// Run takes over the terminal until ctx ends or the user quits.
func (d *Dashboard) Run(ctx context.Context) error {
	t, err := tcell.New(tcell.ColorMode(terminalapi.ColorMode256))
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	defer t.Close()

	opts, err := d.layout()
	if err != nil {
		return fmt.Errorf("failed to build grid layout: %w", err)
	}
	c, err := container.New(t, opts...)
	if err != nil {
		return fmt.Errorf("failed to create root container: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	keys := func(k *terminalapi.Keyboard) {
		if d.HandleKey(k.Key) {
			cancel()
		}
	}
	return termdash.Run(ctx, t, c, termdash.KeyboardSubscriber(keys), termdash.RedrawInterval(redrawInterval))
}
