package service

import (
	"math"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
)

// Pure indicator functions over candle series. A nil result means
// "insufficient history" or "no structure found" and is a legitimate outcome,
// never an error.

// MovingAverage is the arithmetic mean of the last period closes.
func MovingAverage(candles []models.Candle, period int) *float64 {
	if period <= 0 || len(candles) < period {
		return nil
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	ma := sum / float64(period)
	return &ma
}

// ATR is the simple mean of true range over the last period bars. Returns 0
// when there is not enough history for a single full window.
func ATR(candles []models.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		c := candles[i]
		p := candles[i-1]
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-p.Close), math.Abs(c.Low-p.Close)))
		sum += tr
	}
	return sum / float64(period)
}

// RSI is the classic Wilder RSI over the last period close-to-close moves.
// A window with zero losses reports 100 rather than dividing by zero.
func RSI(candles []models.Candle, period int) *float64 {
	if period <= 0 || len(candles) < period+1 {
		return nil
	}
	gains, losses := 0.0, 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - candles[i-1].Close
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		v := 100.0
		return &v
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	v := 100 - (100 / (1 + rs))
	return &v
}

// LastSwing scans the most recent lookback candles from newest-but-two
// backward and returns the first local-minimum low (LONG) or local-maximum
// high (SHORT). Nil means no structure in the window.
func LastSwing(candles []models.Candle, direction models.Side, lookback int) *float64 {
	if len(candles) < lookback {
		return nil
	}
	recent := candles[len(candles)-lookback:]
	for i := len(recent) - 3; i > 0; i-- {
		if direction == models.SideLong &&
			recent[i].Low < recent[i-1].Low && recent[i].Low < recent[i+1].Low {
			v := recent[i].Low
			return &v
		}
		if direction == models.SideShort &&
			recent[i].High > recent[i-1].High && recent[i].High > recent[i+1].High {
			v := recent[i].High
			return &v
		}
	}
	return nil
}

// IsEngulfing reports whether current fully engulfs previous as a
// reversal-resumption candle in the given direction.
func IsEngulfing(current, previous models.Candle, direction models.Side) bool {
	if direction == models.SideLong {
		return current.Close > current.Open && previous.Close < previous.Open &&
			current.Close > previous.High && current.Open < previous.Low
	}
	return current.Close < current.Open && previous.Close > previous.Open &&
		current.Close < previous.Low && current.Open > previous.High
}
