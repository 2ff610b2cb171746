package backtest

import (
	"fmt"
	"math"
	"strings"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
)

const (
	OutcomeTP  = "TAKE_PROFIT"
	OutcomeSL  = "STOP_LOSS"
	OutcomeEOD = "END_OF_DATA"
)

// Trade is one closed simulated position. Indices refer to the M15 series of
// the asset.
type Trade struct {
	Asset       string
	Direction   models.Side
	EntryIndex  int
	ExitIndex   int
	EntryPrice  float64
	ExitPrice   float64
	StopLoss    float64
	TakeProfit  float64
	PnL         float64
	Outcome     string
	EquityAfter float64
}

type Results struct {
	InitialEquity float64
	FinalEquity   float64
	MaxDrawdown   float64 // percent, from running peak
	Trades        []Trade
	EquityCurve   []float64
}

type Stats struct {
	TotalTrades  int
	Wins         int
	Losses       int
	WinRate      float64 // percent
	ProfitFactor float64
	NetPnL       float64
	TotalReturn  float64 // percent
	MaxDrawdown  float64 // percent
}

func (r *Results) Stats() Stats {
	s := Stats{
		TotalTrades: len(r.Trades),
		MaxDrawdown: r.MaxDrawdown,
		NetPnL:      r.FinalEquity - r.InitialEquity,
	}
	grossProfit, grossLoss := 0.0, 0.0
	for _, t := range r.Trades {
		if t.PnL > 0 {
			s.Wins++
			grossProfit += t.PnL
		} else {
			s.Losses++
			grossLoss += -t.PnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		s.ProfitFactor = math.Inf(1)
	}
	if r.InitialEquity > 0 {
		s.TotalReturn = s.NetPnL / r.InitialEquity * 100
	}
	return s
}

// Report renders a plain-text debrief for the terminal.
func (r *Results) Report() string {
	s := r.Stats()

	var b strings.Builder
	b.WriteString("=========================================\n")
	b.WriteString("           MISSION DEBRIEF\n")
	b.WriteString("=========================================\n")
	fmt.Fprintf(&b, "Initial Equity:   %.2f\n", r.InitialEquity)
	fmt.Fprintf(&b, "Final Equity:     %.2f\n", r.FinalEquity)
	fmt.Fprintf(&b, "Net PnL:          %+.2f (%+.2f%%)\n", s.NetPnL, s.TotalReturn)
	fmt.Fprintf(&b, "Max Drawdown:     %.2f%%\n", s.MaxDrawdown)
	b.WriteString("-----------------------------------------\n")
	fmt.Fprintf(&b, "Trades:           %d (%d W / %d L)\n", s.TotalTrades, s.Wins, s.Losses)
	fmt.Fprintf(&b, "Win Rate:         %.1f%%\n", s.WinRate)
	if math.IsInf(s.ProfitFactor, 1) {
		b.WriteString("Profit Factor:    inf\n")
	} else {
		fmt.Fprintf(&b, "Profit Factor:    %.2f\n", s.ProfitFactor)
	}
	b.WriteString("-----------------------------------------\n")
	for _, t := range r.Trades {
		fmt.Fprintf(&b, "%-10s %-5s entry %.5f exit %.5f  %-11s %+10.2f  -> %.2f\n",
			t.Asset, t.Direction, t.EntryPrice, t.ExitPrice, t.Outcome, t.PnL, t.EquityAfter)
	}
	b.WriteString("=========================================\n")
	return b.String()
}
