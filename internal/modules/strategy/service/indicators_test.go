package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
)

func closes(vals ...float64) []models.Candle {
	out := make([]models.Candle, len(vals))
	for i, v := range vals {
		out[i] = models.Candle{Open: v, High: v, Low: v, Close: v}
	}
	return out
}

func TestMovingAverage(t *testing.T) {
	ma := MovingAverage(closes(1, 2, 3, 4, 5), 5)
	require.NotNil(t, ma)
	assert.InDelta(t, 3.0, *ma, 1e-9)

	assert.Nil(t, MovingAverage(closes(1, 2), 5), "short history must yield nil, not a partial mean")
}

func TestATRHandComputed(t *testing.T) {
	candles := []models.Candle{
		{High: 10, Low: 10, Close: 10},
		{High: 12, Low: 9, Close: 11},  // TR = 3
		{High: 13, Low: 10, Close: 12}, // TR = 3
		{High: 15, Low: 11, Close: 12}, // TR = 4
	}
	assert.InDelta(t, 10.0/3.0, ATR(candles, 3), 1e-9)
	assert.Zero(t, ATR(candles, 4), "a window without a preceding close has no true range")
}

func TestRSIHandComputed(t *testing.T) {
	// diffs: +1, -0.5, +1.5 -> RS = 2.5/0.5 = 5
	rsi := RSI(closes(10, 11, 10.5, 12), 3)
	require.NotNil(t, rsi)
	assert.InDelta(t, 100-100.0/6.0, *rsi, 1e-9)

	allGains := RSI(closes(10, 11, 12, 13), 3)
	require.NotNil(t, allGains)
	assert.Equal(t, 100.0, *allGains)

	assert.Nil(t, RSI(closes(10, 11), 3))
}

func TestLastSwing(t *testing.T) {
	candles := closes(5, 5, 5, 5, 5, 5, 5, 5)
	candles[3].Low = 2 // local minimum

	swing := LastSwing(candles, models.SideLong, 8)
	require.NotNil(t, swing)
	assert.Equal(t, 2.0, *swing)

	assert.Nil(t, LastSwing(candles, models.SideLong, 9), "lookback larger than history")
	assert.Nil(t, LastSwing(closes(1, 2, 3, 4, 5, 6, 7, 8), models.SideLong, 8), "monotonic series has no swing")

	short := closes(5, 5, 5, 5, 5, 5, 5, 5)
	short[4].High = 9
	swing = LastSwing(short, models.SideShort, 8)
	require.NotNil(t, swing)
	assert.Equal(t, 9.0, *swing)
}

func TestIsEngulfing(t *testing.T) {
	prev := models.Candle{Open: 1.0060, High: 1.0065, Low: 1.0035, Close: 1.0040}
	curr := models.Candle{Open: 1.0030, High: 1.0105, Low: 1.0025, Close: 1.0100}

	assert.True(t, IsEngulfing(curr, prev, models.SideLong))
	assert.False(t, IsEngulfing(curr, prev, models.SideShort))

	// body inside the previous candle is not engulfing
	inside := models.Candle{Open: 1.0045, High: 1.0060, Low: 1.0040, Close: 1.0055}
	assert.False(t, IsEngulfing(inside, prev, models.SideLong))
}
