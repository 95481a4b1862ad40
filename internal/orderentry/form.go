package orderentry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	Limit      OrderType = "Limit"
	Market     OrderType = "Market"
	StopLimit  OrderType = "Stop Limit"
	StopMarket OrderType = "Stop Market"
)

var OrderTypes = []OrderType{Limit, Market, StopLimit, StopMarket}

type MarginMode string

const (
	Cross    MarginMode = "Cross"
	Isolated MarginMode = "Isolated"
)

// Display precision of the panel fields.
const (
	pricePlaces  = 3
	amountPlaces = 4
	marginPlaces = 2
)

// Form is the order panel state. Price and Amount are kept as the user-facing strings
// because either may be typed freely; Margin and Slider are derived.
type Form struct {
	OrderType  OrderType  `json:"orderType"`
	MarginMode MarginMode `json:"marginMode"`
	Leverage   string     `json:"leverage"`
	Price      string     `json:"price"`
	Amount     string     `json:"amount"`
	Margin     string     `json:"margin"`
	Slider     float64    `json:"slider"`
	Funds      float64    `json:"availableFunds"`
}

// NewForm returns an empty Limit/Cross form.
func NewForm(funds float64, leverage string) (Form, error) {
	if _, err := ParseLeverage(leverage); err != nil {
		return Form{}, err
	}
	return Form{
		OrderType:  Limit,
		MarginMode: Cross,
		Leverage:   strings.ToUpper(strings.TrimSpace(leverage)),
		Margin:     "0",
		Funds:      funds,
	}, nil
}

// SelectPrice prefills the panel from an order book click: the price, the max tradable
// amount and a full slider.
func (f Form) SelectPrice(price float64) Form {
	if !finite(price) {
		return f
	}
	f.Price = fixed(price, pricePlaces)
	return f.fillMax(price)
}

// SetPrice stores a typed price without touching the other fields.
func (f Form) SetPrice(s string) Form {
	f.Price = s
	return f
}

// SetAmount stores a typed amount and derives margin and slider from it.
func (f Form) SetAmount(s string) Form {
	f.Amount = s
	amount, aerr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	price, perr := f.price()
	lev := f.leverage()
	if aerr != nil || perr != nil || lev <= 0 {
		f.Margin = "0"
		f.Slider = 0
		return f
	}
	f.Margin = fixed(Margin(amount, price, lev), marginPlaces)
	f.Slider = PercentOfMax(amount, f.Funds, price, lev)
	return f
}

// SetLeverage switches the multiplier and resets the amount to the new max.
func (f Form) SetLeverage(s string) (Form, error) {
	if !SupportedLeverage(s) {
		return f, fmt.Errorf("unsupported leverage %q", s)
	}
	f.Leverage = strings.ToUpper(strings.TrimSpace(s))
	price, err := f.price()
	if err != nil {
		price = 0
	}
	return f.fillMax(price), nil
}

// SetSlider moves the slider and derives amount and margin from it.
func (f Form) SetSlider(pct float64) Form {
	f.Slider = ClampPercent(pct)
	price, err := f.price()
	if err != nil || !positive(f.Funds) || !positive(price) {
		f.Amount = "0"
		f.Margin = "0"
		return f
	}
	amount := AmountAtPercent(f.Slider, f.Funds, price, f.leverage())
	f.Amount = fixed(amount, amountPlaces)
	f.Margin = fixed(Margin(amount, price, f.leverage()), marginPlaces)
	return f
}

// SetOrderType accepts any of OrderTypes.
func (f Form) SetOrderType(t OrderType) (Form, error) {
	for _, ot := range OrderTypes {
		if ot == t {
			f.OrderType = t
			return f, nil
		}
	}
	return f, fmt.Errorf("unsupported order type %q", t)
}

func (f Form) SetMarginMode(m MarginMode) (Form, error) {
	if m != Cross && m != Isolated {
		return f, fmt.Errorf("unsupported margin mode %q", m)
	}
	f.MarginMode = m
	return f, nil
}

// MaxAmount is the max tradable amount at the current price and leverage.
func (f Form) MaxAmount() float64 {
	price, err := f.price()
	if err != nil {
		return 0
	}
	return MaxTradableAmount(f.Funds, price, f.leverage())
}

// View is the form plus the values the panel shows next to the slider.
type View struct {
	Form
	MaxAmount   float64  `json:"maxAmount"`
	SliderLabel string   `json:"sliderLabel"`
	Leverages   []string `json:"leverages"`
}

func (f Form) View() View {
	amount, err := strconv.ParseFloat(strings.TrimSpace(f.Amount), 64)
	if err != nil || !finite(amount) {
		amount = 0
	}
	maxAmt := f.MaxAmount()
	return View{
		Form:        f,
		MaxAmount:   maxAmt,
		SliderLabel: fmt.Sprintf("%s / %s", fixed(amount, 2), fixed(maxAmt, 2)),
		Leverages:   Leverages,
	}
}

func (f Form) fillMax(price float64) Form {
	lev := f.leverage()
	if !positive(f.Funds) || !positive(price) || lev <= 0 {
		f.Amount = "0"
		f.Margin = "0"
		f.Slider = 0
		return f
	}
	maxAmt := MaxTradableAmount(f.Funds, price, lev)
	f.Amount = fixed(maxAmt, amountPlaces)
	f.Slider = 100
	f.Margin = fixed(Margin(maxAmt, price, lev), marginPlaces)
	return f
}

func (f Form) price() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(f.Price), 64)
}

func (f Form) leverage() float64 {
	lev, err := ParseLeverage(f.Leverage)
	if err != nil {
		return 0
	}
	return lev
}

// fixed renders v with a fixed number of decimals, rounding half away from zero.
func fixed(v float64, places int32) string {
	if !finite(v) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
