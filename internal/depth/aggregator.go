package depth

import (
	"errors"
	"math"

	"github.com/tidwall/btree"
)

// maxBucketPrice is the first float64 that no longer fits in an int64 bucket.
const maxBucketPrice = float64(math.MaxInt64)

// AggregateSide folds raw levels into integer price bands for one side of the book.
//
// Bids round down and are returned highest first; asks round up and are returned lowest
// first. RunningTotal is the inclusive cumulative amount from the best bucket outward.
// Any non-finite, negative or out-of-range value rejects the whole side.
func AggregateSide(levels []PriceLevel, side Side) ([]BookEntry, error) {
	if side != Bid && side != Ask {
		return nil, errors.New("aggregate: unknown side " + string(side))
	}
	if err := validate(levels, side); err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return []BookEntry{}, nil
	}

	// Sizes are summed per bucket in input order.
	buckets := btree.NewMap[int64, float64](32)
	for _, lvl := range levels {
		k := bucketFor(lvl.Price, side)
		sum, _ := buckets.Get(k)
		buckets.Set(k, sum+lvl.Size)
	}

	out := make([]BookEntry, 0, buckets.Len())
	var running float64
	emit := func(price int64, amount float64) bool {
		running += amount
		out = append(out, BookEntry{BucketPrice: price, Amount: amount, RunningTotal: running})
		return true
	}
	if side == Bid {
		buckets.Reverse(emit)
	} else {
		buckets.Scan(emit)
	}
	return out, nil
}

func bucketFor(price float64, side Side) int64 {
	if side == Bid {
		return int64(math.Floor(price))
	}
	return int64(math.Ceil(price))
}

func validate(levels []PriceLevel, side Side) error {
	for i, lvl := range levels {
		if bad(lvl.Price) || lvl.Price >= maxBucketPrice {
			return &InvalidLevelError{Side: side, Index: i, Field: "price", Value: lvl.Price, Level: lvl}
		}
		if bad(lvl.Size) {
			return &InvalidLevelError{Side: side, Index: i, Field: "size", Value: lvl.Size, Level: lvl}
		}
	}
	return nil
}

func bad(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// MaxOverallDepth is the larger of the two sides' final running totals (0 for an empty side).
func MaxOverallDepth(bids, asks []BookEntry) float64 {
	return max(lastTotal(bids), lastTotal(asks))
}

func lastTotal(entries []BookEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].RunningTotal
}

// DepthRatio scales an entry's running total against maxDepth into [0, 1].
func DepthRatio(e BookEntry, maxDepth float64) float64 {
	if maxDepth <= 0 || math.IsNaN(maxDepth) {
		return 0
	}
	r := e.RunningTotal / maxDepth
	if r > 1 {
		return 1
	}
	return r
}

// Aggregator turns raw snapshots into display books.
type Aggregator struct {
	displayLevels int
}

// NewAggregator returns an aggregator that keeps at most displayLevels buckets per side
// after running totals are computed. 0 keeps every bucket.
func NewAggregator(displayLevels int) *Aggregator {
	if displayLevels < 0 {
		displayLevels = 0
	}
	return &Aggregator{displayLevels: displayLevels}
}

// Process aggregates both sides of s. A side that fails validation keeps its entries from
// prev, so the returned book is always displayable; the error reports every rejected side
// and wraps ErrInvalidLevel.
func (a *Aggregator) Process(prev Book, s Snapshot) (Book, error) {
	book := Book{
		Symbol:       s.Symbol,
		Bids:         prev.Bids,
		Asks:         prev.Asks,
		LastUpdateID: s.LastUpdateID,
		Updated:      s.Received,
	}

	bids, bidErr := AggregateSide(s.Bids, Bid)
	if bidErr == nil {
		book.Bids = a.limit(bids)
	}
	asks, askErr := AggregateSide(s.Asks, Ask)
	if askErr == nil {
		book.Asks = a.limit(asks)
	}
	if bidErr != nil && askErr != nil {
		book.LastUpdateID = prev.LastUpdateID
		book.Updated = prev.Updated
	}
	book.MaxOverallDepth = MaxOverallDepth(book.Bids, book.Asks)
	return book, errors.Join(bidErr, askErr)
}

func (a *Aggregator) limit(entries []BookEntry) []BookEntry {
	if a.displayLevels > 0 && len(entries) > a.displayLevels {
		return entries[:a.displayLevels]
	}
	return entries
}
