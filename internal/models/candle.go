package models

// Timeframe names match the chart timeframes the engine trades on.
type Timeframe string

const (
	TFM5  Timeframe = "M5"
	TFM15 Timeframe = "M15"
	TFM30 Timeframe = "M30"
	TFH1  Timeframe = "H1"
)

// Timeframes is the fixed set maintained by the aggregator, finest first.
var Timeframes = []Timeframe{TFM5, TFM15, TFM30, TFH1}

// Candle is one OHLC bar. OpenTime is the timeframe-aligned bucket start in
// unix milliseconds. The last candle of a series is mutated in place while
// ticks for its bucket arrive; everything before it is immutable.
type Candle struct {
	OpenTime int64   `json:"time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
}

// CandleSet is a per-timeframe snapshot of one asset's candle series.
type CandleSet map[Timeframe][]Candle

type Tick struct {
	Asset string
	Price float64
	Time  int64 // unix ms
}
