package models

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other trade direction.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// TradePlan is produced by the strategy engine on TRADE_READY and consumed
// immediately by the sizer and the orchestrator (or the backtester). Prices
// are already normalized to the asset's precision.
type TradePlan struct {
	Asset      string
	Direction  Side
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// EntryContext is the indicator snapshot captured at entry time, journaled
// alongside the trade outcome.
type EntryContext struct {
	H1TrendStrength float64 `json:"h1_trend_strength"`
	RSI             float64 `json:"rsi"`
	ATR             float64 `json:"atr"`
}

// TacticalState is carried between strategy invocations per asset. It is
// currently always returned empty but stays threaded through as the extension
// point for multi-bar pending setups.
type TacticalState map[string]any

type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// JournalEntry is the append-only long-term memory record the strategy's
// performance veto reads back.
type JournalEntry struct {
	Asset     string
	Strategy  string
	Regime    string
	Context   EntryContext
	Outcome   Outcome
	PnL       float64
	Timestamp time.Time
}

type ClosedTrade struct {
	Asset      string
	Direction  Side
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	Strategy   string
	Regime     string
	Timestamp  time.Time
}
