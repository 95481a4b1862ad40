package depth

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateBidsRoundDownAndAccumulate(t *testing.T) {
	got, err := AggregateSide([]PriceLevel{
		{Price: 100.7, Size: 1.0},
		{Price: 99.9, Size: 2.0},
	}, Bid)
	require.NoError(t, err)
	assert.Equal(t, []BookEntry{
		{BucketPrice: 100, Amount: 1.0, RunningTotal: 1.0},
		{BucketPrice: 99, Amount: 2.0, RunningTotal: 3.0},
	}, got)
}

func TestAggregateAsksRoundUpAndMerge(t *testing.T) {
	got, err := AggregateSide([]PriceLevel{
		{Price: 100.2, Size: 1.5},
		{Price: 101.0, Size: 0.5},
	}, Ask)
	require.NoError(t, err)
	assert.Equal(t, []BookEntry{{BucketPrice: 101, Amount: 2.0, RunningTotal: 2.0}}, got)
}

func TestRounding(t *testing.T) {
	bids, err := AggregateSide([]PriceLevel{{Price: 100.7, Size: 1}}, Bid)
	require.NoError(t, err)
	asks, err := AggregateSide([]PriceLevel{{Price: 100.2, Size: 1}}, Ask)
	require.NoError(t, err)
	if bids[0].BucketPrice != 100 {
		t.Fatalf("bid bucket got %d want 100", bids[0].BucketPrice)
	}
	if asks[0].BucketPrice != 101 {
		t.Fatalf("ask bucket got %d want 101", asks[0].BucketPrice)
	}
}

func TestMergeSameBidBucket(t *testing.T) {
	got, err := AggregateSide([]PriceLevel{
		{Price: 100.1, Size: 0.25},
		{Price: 100.9, Size: 0.5},
	}, Bid)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].BucketPrice)
	assert.InDelta(t, 0.75, got[0].Amount, 1e-12)
	assert.InDelta(t, 0.75, got[0].RunningTotal, 1e-12)
}

func TestEmptyInput(t *testing.T) {
	for _, side := range []Side{Bid, Ask} {
		got, err := AggregateSide(nil, side)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Zero(t, MaxOverallDepth(nil, nil))
}

func TestZeroSizeLevelKeepsBucket(t *testing.T) {
	got, err := AggregateSide([]PriceLevel{
		{Price: 50.5, Size: 0},
		{Price: 49.2, Size: 3},
	}, Bid)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, BookEntry{BucketPrice: 50, Amount: 0, RunningTotal: 0}, got[0])
	assert.Equal(t, BookEntry{BucketPrice: 49, Amount: 3, RunningTotal: 3}, got[1])
}

func TestIntegerPricesAreTheirOwnBucket(t *testing.T) {
	bids, err := AggregateSide([]PriceLevel{{Price: 100, Size: 1}}, Bid)
	require.NoError(t, err)
	asks, err := AggregateSide([]PriceLevel{{Price: 100, Size: 1}}, Ask)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bids[0].BucketPrice)
	assert.Equal(t, int64(100), asks[0].BucketPrice)
}

func TestInvalidLevelRejectsWholeSide(t *testing.T) {
	cases := []struct {
		name  string
		level PriceLevel
		field string
	}{
		{"nan price", PriceLevel{Price: math.NaN(), Size: 1}, "price"},
		{"inf price", PriceLevel{Price: math.Inf(1), Size: 1}, "price"},
		{"negative price", PriceLevel{Price: -1, Size: 1}, "price"},
		{"huge price", PriceLevel{Price: 1e19, Size: 1}, "price"},
		{"nan size", PriceLevel{Price: 10, Size: math.NaN()}, "size"},
		{"-inf size", PriceLevel{Price: 10, Size: math.Inf(-1)}, "size"},
		{"negative size", PriceLevel{Price: 10, Size: -0.5}, "size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			levels := []PriceLevel{{Price: 101.3, Size: 1}, tc.level, {Price: 99.1, Size: 2}}
			got, err := AggregateSide(levels, Ask)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrInvalidLevel))

			var ile *InvalidLevelError
			require.True(t, errors.As(err, &ile))
			assert.Equal(t, Ask, ile.Side)
			assert.Equal(t, 1, ile.Index)
			assert.Equal(t, tc.field, ile.Field)
		})
	}
}

func TestUnknownSide(t *testing.T) {
	_, err := AggregateSide([]PriceLevel{{Price: 1, Size: 1}}, Side("MID"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidLevel))
}

// Properties over a fixed pseudo-random input set.
func TestAggregateInvariants(t *testing.T) {
	levels := make([]PriceLevel, 0, 200)
	x := uint32(7)
	for i := 0; i < 200; i++ {
		x = x*1664525 + 1013904223
		price := 60000 + float64(x%5000)/100
		x = x*1664525 + 1013904223
		size := float64(x%1000) / 250
		levels = append(levels, PriceLevel{Price: price, Size: size})
	}

	for _, side := range []Side{Bid, Ask} {
		got, err := AggregateSide(levels, side)
		require.NoError(t, err)

		distinct := map[int64]bool{}
		var sum float64
		for _, l := range levels {
			distinct[bucketFor(l.Price, side)] = true
			sum += l.Size
		}
		assert.Len(t, got, len(distinct))
		assert.LessOrEqual(t, len(got), len(levels))

		var amounts float64
		for i, e := range got {
			assert.GreaterOrEqual(t, e.Amount, 0.0)
			amounts += e.Amount
			if i == 0 {
				continue
			}
			prev := got[i-1]
			if side == Bid {
				assert.Less(t, e.BucketPrice, prev.BucketPrice)
			} else {
				assert.Greater(t, e.BucketPrice, prev.BucketPrice)
			}
			assert.GreaterOrEqual(t, e.RunningTotal, prev.RunningTotal)
		}
		assert.InDelta(t, amounts, got[len(got)-1].RunningTotal, 1e-9)
		assert.InDelta(t, sum, amounts, 1e-9)
	}
}

func TestDeterministic(t *testing.T) {
	levels := []PriceLevel{{100.1, 0.1}, {100.2, 0.2}, {100.3, 0.3}, {98.5, 1e-9}, {100.9, 7}}
	first, err := AggregateSide(levels, Bid)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := AggregateSide(levels, Bid)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestMaxOverallDepth(t *testing.T) {
	bids := []BookEntry{{100, 1, 1}, {99, 2, 3}}
	asks := []BookEntry{{101, 4, 4}}
	assert.Equal(t, 4.0, MaxOverallDepth(bids, asks))
	assert.Equal(t, 3.0, MaxOverallDepth(bids, nil))
	assert.Equal(t, 4.0, MaxOverallDepth(nil, asks))
}

func TestDepthRatio(t *testing.T) {
	e := BookEntry{BucketPrice: 1, Amount: 1, RunningTotal: 2}
	assert.Equal(t, 0.5, DepthRatio(e, 4))
	assert.Equal(t, 0.0, DepthRatio(e, 0))
	assert.Equal(t, 1.0, DepthRatio(e, 1))
}

func TestProcessKeepsPreviousSideOnInvalid(t *testing.T) {
	agg := NewAggregator(0)
	now := time.Now()
	first, err := agg.Process(Book{}, Snapshot{
		Symbol:       "BTCUSDT",
		Bids:         []PriceLevel{{100.7, 1}, {99.9, 2}},
		Asks:         []PriceLevel{{100.2, 1.5}, {101.0, 0.5}},
		LastUpdateID: 1,
		Received:     now,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, first.MaxOverallDepth)

	second, err := agg.Process(first, Snapshot{
		Symbol:       "BTCUSDT",
		Bids:         []PriceLevel{{math.NaN(), 1}},
		Asks:         []PriceLevel{{105.5, 9}},
		LastUpdateID: 2,
		Received:     now.Add(time.Second),
	})
	require.ErrorIs(t, err, ErrInvalidLevel)
	assert.Equal(t, first.Bids, second.Bids)
	assert.Equal(t, []BookEntry{{106, 9, 9}}, second.Asks)
	assert.Equal(t, 9.0, second.MaxOverallDepth)
	assert.Equal(t, int64(2), second.LastUpdateID)
}

func TestProcessBothSidesInvalidKeepsEverything(t *testing.T) {
	agg := NewAggregator(0)
	prev := Book{Symbol: "BTCUSDT", Bids: []BookEntry{{10, 1, 1}}, Asks: []BookEntry{{11, 2, 2}}, LastUpdateID: 5, MaxOverallDepth: 2}
	got, err := agg.Process(prev, Snapshot{
		Symbol:       "BTCUSDT",
		Bids:         []PriceLevel{{1, math.Inf(1)}},
		Asks:         []PriceLevel{{math.NaN(), 1}},
		LastUpdateID: 6,
	})
	require.Error(t, err)
	assert.Equal(t, prev.Bids, got.Bids)
	assert.Equal(t, prev.Asks, got.Asks)
	assert.Equal(t, int64(5), got.LastUpdateID)
}

func TestProcessDisplayLimit(t *testing.T) {
	agg := NewAggregator(2)
	got, err := agg.Process(Book{}, Snapshot{
		Bids: []PriceLevel{{10.5, 1}, {9.5, 1}, {8.5, 1}},
		Asks: []PriceLevel{{11.5, 1}},
	})
	require.NoError(t, err)
	require.Len(t, got.Bids, 2)
	assert.Equal(t, 2.0, got.Bids[1].RunningTotal)
	assert.Equal(t, 2.0, got.MaxOverallDepth)
}

func TestBookCloneIsIndependent(t *testing.T) {
	b := Book{Bids: []BookEntry{{1, 1, 1}}}
	c := b.Clone()
	c.Bids[0].Amount = 42
	assert.Equal(t, 1.0, b.Bids[0].Amount)
	best, ok := b.BestBid()
	assert.True(t, ok)
	assert.Equal(t, int64(1), best.BucketPrice)
	_, ok = b.BestAsk()
	assert.False(t, ok)
}
