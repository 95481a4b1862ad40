package depth

import (
	"errors"
	"fmt"
)

// ErrInvalidLevel is matched by every *InvalidLevelError.
var ErrInvalidLevel = errors.New("invalid level")

// InvalidLevelError identifies the raw level that caused a side to be rejected.
type InvalidLevelError struct {
	Side  Side
	Index int
	Field string // "price" or "size"
	Value float64
	Level PriceLevel
}

func (e *InvalidLevelError) Error() string {
	return fmt.Sprintf("invalid level: %s[%d] %s=%v", e.Side, e.Index, e.Field, e.Value)
}

func (e *InvalidLevelError) Unwrap() error { return ErrInvalidLevel }
