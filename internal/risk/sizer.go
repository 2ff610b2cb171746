// Package risk sizes positions so that the loss at stop equals a fixed
// fraction of account equity, across heterogeneous quoting conventions.
package risk

import (
	"math"
	"strings"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

const (
	lotStep = 0.01
	minLots = 0.01
	maxLots = 50.0
)

// CalculateSize returns the lot size for a trade, quantized down to 0.01 and
// capped at 50 lots. It degrades to 0, never an error, when equity is gone,
// the stop distance is zero, the asset has no configured point value, or the
// quote currency cannot be converted (only direct quotes and account-base
// inverse pairs are supported; true cross pairs are refused).
func CalculateSize(equity, riskFraction, entryPrice, stopPrice float64, asset, accountCurrency string, book *config.SpecBook) float64 {
	if equity <= 0 {
		return 0
	}

	dollarsAtRisk := equity * riskFraction
	stopPoints := math.Abs(entryPrice - stopPrice)
	if stopPoints == 0 {
		return 0
	}

	pointValue := book.Spec(asset).PointValue
	if pointValue == 0 {
		logger.Error("[RISK] no point value configured for %s, sizing vetoed", asset)
		return 0
	}

	riskPerLotQuote := stopPoints * pointValue

	var riskPerLot float64
	switch {
	case quoteCurrency(asset) == accountCurrency:
		riskPerLot = riskPerLotQuote
	case strings.HasPrefix(asset, accountCurrency+"/"):
		if entryPrice == 0 {
			return 0
		}
		riskPerLot = riskPerLotQuote / entryPrice
	default:
		logger.Error("[RISK] cannot convert risk for cross pair %s, sizing vetoed", asset)
		return 0
	}

	if riskPerLot <= 0 {
		return 0
	}

	size := dollarsAtRisk / riskPerLot
	quantized := math.Floor(size/lotStep) * lotStep
	if quantized < minLots {
		return 0
	}
	return math.Min(maxLots, quantized)
}

func quoteCurrency(asset string) string {
	if i := strings.IndexByte(asset, '/'); i >= 0 {
		return asset[i+1:]
	}
	return ""
}
