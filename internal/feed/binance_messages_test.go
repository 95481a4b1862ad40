package feed

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedash/internal/depth"
)

func TestDecodeDepth(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	msg := []byte(`{"lastUpdateId":160,"bids":[["100.70","1.0"],["99.90","2.0"]],"asks":[["100.20","1.5"],["101.00","0.5"]]}`)
	snap, err := DecodeDepth("BTCUSDT", msg, now)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, int64(160), snap.LastUpdateID)
	assert.Equal(t, now, snap.Received)
	assert.Equal(t, []depth.PriceLevel{{Price: 100.7, Size: 1}, {Price: 99.9, Size: 2}}, snap.Bids)
	assert.Equal(t, []depth.PriceLevel{{Price: 100.2, Size: 1.5}, {Price: 101, Size: 0.5}}, snap.Asks)
}

func TestDecodeDepthRejectsBadFields(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"bids":`,
		"empty":        `{"result":null,"id":1}`,
		"bad price":    `{"bids":[["abc","1"]],"asks":[]}`,
		"nan size":     `{"bids":[],"asks":[["1","NaN"]]}`,
		"missing size": `{"bids":[["1"]],"asks":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDepth("BTCUSDT", []byte(body), time.Now())
			assert.Error(t, err)
		})
	}
}

func TestDecodeDepthHugeExponentBecomesInf(t *testing.T) {
	snap, err := DecodeDepth("BTCUSDT", []byte(`{"bids":[["1e400","1"]],"asks":[]}`), time.Now())
	require.NoError(t, err)
	assert.True(t, math.IsInf(snap.Bids[0].Price, 1))
	_, err = depth.AggregateSide(snap.Bids, depth.Bid)
	assert.ErrorIs(t, err, depth.ErrInvalidLevel)
}

func TestDecodeTicker(t *testing.T) {
	msg := []byte(`{"e":"24hrTicker","E":1700000000000,"s":"BTCUSDT","p":"-120.50","P":"-0.126","c":"95432.52","h":"96800.00","l":"94100.10","v":"18234.123","q":"1740000000.5"}`)
	tk, err := DecodeTicker(msg)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", tk.Symbol)
	assert.Equal(t, 95432.52, tk.LastPrice)
	assert.Equal(t, -120.5, tk.PriceChange)
	assert.Equal(t, -0.126, tk.PriceChangePercent)
	assert.Equal(t, 96800.0, tk.High24h)
	assert.Equal(t, 94100.1, tk.Low24h)
	assert.Equal(t, 18234.123, tk.BaseVolume)
	assert.Equal(t, 1740000000.5, tk.QuoteVolume)
	assert.Equal(t, time.UnixMilli(1700000000000), tk.EventTime)
	assert.Equal(t, "down", tk.Direction())

	_, err = DecodeTicker([]byte(`{"e":"trade"}`))
	assert.Error(t, err)
	_, err = DecodeTicker([]byte(`{"e":"24hrTicker","c":"x"}`))
	assert.ErrorContains(t, err, "ticker c")
}

func TestDecodeTrade(t *testing.T) {
	msg := []byte(`{"e":"trade","E":1700000000001,"s":"BTCUSDT","t":12345,"p":"95430.01","q":"0.00120000","T":1700000000000,"m":true}`)
	tr, err := DecodeTrade(msg)
	require.NoError(t, err)
	assert.Equal(t, "12345", tr.ID)
	assert.Equal(t, 95430.01, tr.Price)
	assert.Equal(t, 0.0012, tr.Amount)
	assert.Equal(t, time.UnixMilli(1700000000000), tr.Time)
	assert.True(t, tr.BuyerIsMaker)
	assert.Equal(t, "sell", tr.Side())

	_, err = DecodeTrade([]byte(`{"e":"aggTrade"}`))
	assert.Error(t, err)
	_, err = DecodeTrade([]byte(`{"e":"trade","p":"1","q":""}`))
	assert.Error(t, err)
}
