package service

import (
	"math"
	"sort"
	"sync"

	"github.com/Mr-Gerald/NEXUSAI/internal/helper"
	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

// Aggregator owns the in-memory candle store: one bounded series per asset
// and timeframe. It is the single writer; readers get copies via Snapshot.
type Aggregator struct {
	mu    sync.RWMutex
	limit int

	store map[string]map[models.Timeframe][]models.Candle
	last  map[string]float64

	rec *Recorder // optional durable-append side channel for M5 rolls
}

func NewAggregator(universe []string, limit int, rec *Recorder) *Aggregator {
	if limit <= 0 {
		limit = 500
	}
	store := make(map[string]map[models.Timeframe][]models.Candle, len(universe))
	for _, asset := range universe {
		perTF := make(map[models.Timeframe][]models.Candle, len(models.Timeframes))
		for _, tf := range models.Timeframes {
			perTF[tf] = nil
		}
		store[asset] = perTF
	}
	return &Aggregator{
		limit: limit,
		store: store,
		last:  make(map[string]float64, len(universe)),
		rec:   rec,
	}
}

// IngestTick folds one observed trade into every timeframe. Ticks for assets
// outside the configured universe are silently ignored; the ingest path never
// returns an error.
func (a *Aggregator) IngestTick(asset string, price float64, ts int64) {
	var rolled *models.Candle

	a.mu.Lock()
	perTF, ok := a.store[asset]
	if !ok {
		a.mu.Unlock()
		return
	}
	a.last[asset] = price

	for _, tf := range models.Timeframes {
		bucket := helper.FloorBucket(ts, helper.TimeframeMs(tf))
		series := perTF[tf]

		if n := len(series); n == 0 || series[n-1].OpenTime != bucket {
			if tf == models.TFM5 && n > 0 && a.rec != nil {
				// the previous M5 bar just closed; persist it after the lock
				// drops so the disk write never stalls ingestion or readers
				c := series[n-1]
				rolled = &c
			}
			series = append(series, models.Candle{
				OpenTime: bucket,
				Open:     price, High: price, Low: price, Close: price,
			})
			if len(series) > a.limit {
				series = series[len(series)-a.limit:]
			}
			perTF[tf] = series
			continue
		}

		c := &series[len(series)-1]
		c.High = math.Max(c.High, price)
		c.Low = math.Min(c.Low, price)
		c.Close = price
	}
	a.mu.Unlock()

	if rolled != nil {
		if err := a.rec.Append(asset, *rolled); err != nil {
			logger.Error("[MARKET] persist %s M5 candle: %v", asset, err)
		}
	}
}

// Snapshot returns a copy of every timeframe series for one asset. Returns
// nil for assets outside the universe.
func (a *Aggregator) Snapshot(asset string) models.CandleSet {
	a.mu.RLock()
	defer a.mu.RUnlock()

	perTF, ok := a.store[asset]
	if !ok {
		return nil
	}
	out := make(models.CandleSet, len(perTF))
	for tf, series := range perTF {
		cp := make([]models.Candle, len(series))
		copy(cp, series)
		out[tf] = cp
	}
	return out
}

func (a *Aggregator) Len(asset string, tf models.Timeframe) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.store[asset][tf])
}

func (a *Aggregator) LastPrice(asset string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	px, ok := a.last[asset]
	return px, ok
}

// LoadSeries installs a finest-timeframe history for one asset and rebuilds
// every coarser timeframe with the identical bucketing rule, so the bootstrap
// store is indistinguishable from one built tick by tick.
func (a *Aggregator) LoadSeries(asset string, m5 []models.Candle) {
	a.mu.Lock()
	defer a.mu.Unlock()

	perTF, ok := a.store[asset]
	if !ok {
		return
	}
	sorted := make([]models.Candle, len(m5))
	copy(sorted, m5)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenTime < sorted[j].OpenTime })

	perTF[models.TFM5] = cap_(sorted, a.limit)
	for _, tf := range []models.Timeframe{models.TFM15, models.TFM30, models.TFH1} {
		perTF[tf] = cap_(AggregateSeries(sorted, helper.TimeframeMs(tf)), a.limit)
	}
	if n := len(sorted); n > 0 {
		a.last[asset] = sorted[n-1].Close
	}
}

func cap_(series []models.Candle, limit int) []models.Candle {
	if len(series) > limit {
		return series[len(series)-limit:]
	}
	return series
}

// AggregateSeries folds a finer series into targetMs-wide bars using the same
// bucketing rule as the live tick path.
func AggregateSeries(fine []models.Candle, targetMs int64) []models.Candle {
	if len(fine) == 0 {
		return nil
	}
	out := make([]models.Candle, 0, len(fine))
	for _, c := range fine {
		bucket := helper.FloorBucket(c.OpenTime, targetMs)
		if n := len(out); n == 0 || out[n-1].OpenTime != bucket {
			out = append(out, models.Candle{
				OpenTime: bucket,
				Open:     c.Open, High: c.High, Low: c.Low, Close: c.Close,
			})
			continue
		}
		agg := &out[len(out)-1]
		agg.High = math.Max(agg.High, c.High)
		agg.Low = math.Min(agg.Low, c.Low)
		agg.Close = c.Close
	}
	return out
}
