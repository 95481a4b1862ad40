// Package orderentry holds the order panel arithmetic and its form state.
//
// Everything here is a pure function of its inputs. A non-positive or non-finite price,
// leverage or balance produces 0 instead of a division error.
package orderentry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Leverages are the multipliers offered by the panel, in display order.
var Leverages = []string{"5X", "10X", "20X", "50X", "100X"}

// ParseLeverage reads "10X", "10x" or "10".
func ParseLeverage(s string) (float64, error) {
	v := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "X")
	lev, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("leverage %q: %w", s, err)
	}
	if !positive(lev) {
		return 0, fmt.Errorf("leverage %q must be positive", s)
	}
	return lev, nil
}

// SupportedLeverage reports whether s is one of Leverages.
func SupportedLeverage(s string) bool {
	up := strings.ToUpper(strings.TrimSpace(s))
	for _, l := range Leverages {
		if l == up {
			return true
		}
	}
	return false
}

// MaxTradableAmount is funds * leverage / price.
func MaxTradableAmount(funds, price, leverage float64) float64 {
	if !positive(funds) || !positive(price) || !positive(leverage) {
		return 0
	}
	return funds * leverage / price
}

// Margin is amount * price / leverage.
func Margin(amount, price, leverage float64) float64 {
	if !finite(amount) || amount < 0 || !positive(price) || !positive(leverage) {
		return 0
	}
	return amount * price / leverage
}

// PercentOfMax expresses amount as a percentage of the max tradable amount. It is not
// clamped: a typed amount above the max reads over 100.
func PercentOfMax(amount, funds, price, leverage float64) float64 {
	maxAmt := MaxTradableAmount(funds, price, leverage)
	if maxAmt <= 0 || !finite(amount) {
		return 0
	}
	return amount / maxAmt * 100
}

// AmountAtPercent is the inverse of PercentOfMax for a slider position in [0, 100].
func AmountAtPercent(pct, funds, price, leverage float64) float64 {
	return MaxTradableAmount(funds, price, leverage) * ClampPercent(pct) / 100
}

func ClampPercent(pct float64) float64 {
	switch {
	case math.IsNaN(pct) || pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func positive(v float64) bool { return finite(v) && v > 0 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
