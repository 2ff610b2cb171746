package helper

import (
	"math"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
)

const minute = int64(60 * 1000)

var tfMs = map[models.Timeframe]int64{
	models.TFM5:  5 * minute,
	models.TFM15: 15 * minute,
	models.TFM30: 30 * minute,
	models.TFH1:  60 * minute,
}

// TimeframeMs returns the bucket width of a timeframe in milliseconds.
func TimeframeMs(tf models.Timeframe) int64 { return tfMs[tf] }

// FloorBucket aligns a unix-ms timestamp down to the start of its bucket.
func FloorBucket(ts, widthMs int64) int64 {
	if widthMs <= 0 {
		return ts
	}
	if ts >= 0 {
		return ts - ts%widthMs
	}
	// negative timestamps floor toward -inf, not toward zero
	return ts - ((ts%widthMs)+widthMs)%widthMs
}

// RoundPrice rounds a price to the given number of decimal places.
func RoundPrice(px float64, decimals int) float64 {
	pow := math.Pow10(decimals)
	return math.Round(px*pow) / pow
}
