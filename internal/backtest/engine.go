// Package backtest replays the decision brain bar-by-bar over historical
// multi-timeframe data, using the same bucketing, sizing, and journaling
// rules as the live path.
package backtest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/Mr-Gerald/NEXUSAI/internal/helper"
	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	journalsvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/journal/service"
	marketsvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/market/service"
	strategysvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy/service"
	"github.com/Mr-Gerald/NEXUSAI/internal/risk"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

type Config struct {
	DataDir         string
	Files           map[string]string // asset -> csv filename
	InitialEquity   float64
	RiskPerTrade    float64
	CalibrationBars int
	AccountCurrency string
}

type Engine struct {
	cfg     Config
	specs   *config.SpecBook
	history map[string]models.CandleSet
}

func NewEngine(cfg Config, specs *config.SpecBook) *Engine {
	if cfg.CalibrationBars <= 0 {
		cfg.CalibrationBars = 50
	}
	if cfg.AccountCurrency == "" {
		cfg.AccountCurrency = "USD"
	}
	return &Engine{
		cfg:     cfg,
		specs:   specs,
		history: make(map[string]models.CandleSet),
	}
}

// LoadHistory reads every configured CSV and rebuilds the coarser timeframes
// with the live aggregator's bucketing rule. Assets with no file are skipped.
func (e *Engine) LoadHistory() error {
	for asset, name := range e.cfg.Files {
		series, err := marketsvc.ReadSeriesCSV(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				logger.Info("[BACKTEST] no history for %s, skipping", asset)
				continue
			}
			return errors.Wrapf(err, "load %s", asset)
		}
		e.SetHistory(asset, series)
	}
	return nil
}

// SetHistory installs a finest-timeframe series for one asset directly.
func (e *Engine) SetHistory(asset string, m5 []models.Candle) {
	e.history[asset] = models.CandleSet{
		models.TFM5:  m5,
		models.TFM15: marketsvc.AggregateSeries(m5, helper.TimeframeMs(models.TFM15)),
		models.TFM30: marketsvc.AggregateSeries(m5, helper.TimeframeMs(models.TFM30)),
		models.TFH1:  marketsvc.AggregateSeries(m5, helper.TimeframeMs(models.TFH1)),
	}
}

// Run replays the strategy over the loaded history. Every run starts from a
// fresh equity and a fresh in-memory journal, so identical input yields an
// identical ledger.
func (e *Engine) Run(ctx context.Context) *Results {
	assets := make([]string, 0, len(e.history))
	for asset := range e.history {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	journal := journalsvc.NewMemory()
	brain := strategysvc.NewPraetorian(journal, e.specs)

	results := &Results{
		InitialEquity: e.cfg.InitialEquity,
		FinalEquity:   e.cfg.InitialEquity,
		EquityCurve:   []float64{e.cfg.InitialEquity},
	}

	equity := e.cfg.InitialEquity
	peak := equity
	maxDrawdown := 0.0

	simLen := 0
	for _, asset := range assets {
		if n := len(e.history[asset][models.TFM15]); n > simLen {
			simLen = n
		}
	}

	// one open position per asset: an asset stays ineligible until the bar
	// that resolved its previous trade
	busyUntil := make(map[string]int, len(assets))

	for i := e.cfg.CalibrationBars; i < simLen; i++ {
		for _, asset := range assets {
			hist := e.history[asset]
			m15 := hist[models.TFM15]
			if i >= len(m15) {
				continue
			}
			if until, ok := busyUntil[asset]; ok && i <= until {
				continue
			}

			asOf := m15[i].OpenTime
			visible := models.CandleSet{
				models.TFM5:  sliceAsOf(hist[models.TFM5], asOf),
				models.TFM15: m15[:i+1],
				models.TFM30: sliceAsOf(hist[models.TFM30], asOf),
				models.TFH1:  sliceAsOf(hist[models.TFH1], asOf),
			}

			res := brain.Evaluate(ctx, asset, visible, models.TacticalState{})
			if res.Status != strategysvc.StatusTradeReady || res.Plan == nil {
				continue
			}
			plan := res.Plan

			size := risk.CalculateSize(equity, e.cfg.RiskPerTrade, plan.EntryPrice, plan.StopLoss,
				asset, e.cfg.AccountCurrency, e.specs)
			if size <= 0 {
				continue
			}

			outcome, exitPrice, exitIndex := simulateOutcome(m15, i, plan)

			dollarsAtRisk := equity * e.cfg.RiskPerTrade
			var pnl float64
			switch outcome {
			case OutcomeTP:
				pnl = dollarsAtRisk * 2.0
			case OutcomeSL:
				pnl = -dollarsAtRisk
			default: // end of data: proportional mark-to-market, deliberately unclamped
				stopDist := plan.EntryPrice - plan.StopLoss
				if plan.Direction == models.SideShort {
					stopDist = plan.StopLoss - plan.EntryPrice
				}
				if stopDist > 0 {
					move := (exitPrice - plan.EntryPrice) / stopDist
					if plan.Direction == models.SideShort {
						move = -move
					}
					pnl = dollarsAtRisk * move
				}
			}

			equity += pnl
			if equity > peak {
				peak = equity
			}
			if dd := (peak - equity) / peak * 100; dd > maxDrawdown {
				maxDrawdown = dd
			}

			results.Trades = append(results.Trades, Trade{
				Asset:       asset,
				Direction:   plan.Direction,
				EntryIndex:  i,
				ExitIndex:   exitIndex,
				EntryPrice:  plan.EntryPrice,
				ExitPrice:   exitPrice,
				StopLoss:    plan.StopLoss,
				TakeProfit:  plan.TakeProfit,
				PnL:         pnl,
				Outcome:     outcome,
				EquityAfter: equity,
			})
			results.EquityCurve = append(results.EquityCurve, equity)

			oc := models.OutcomeLoss
			if pnl > 0 {
				oc = models.OutcomeWin
			}
			entry := models.JournalEntry{
				Asset:     asset,
				Strategy:  strategysvc.StrategyID,
				Regime:    "TRENDING",
				Outcome:   oc,
				PnL:       pnl,
				Timestamp: time.UnixMilli(m15[exitIndex].OpenTime),
			}
			if res.EntryContext != nil {
				entry.Context = *res.EntryContext
			}
			_ = journal.AppendJournalEntry(ctx, entry)

			busyUntil[asset] = exitIndex
		}
	}

	results.FinalEquity = equity
	results.MaxDrawdown = maxDrawdown
	return results
}

// simulateOutcome walks forward on M15 until price touches the stop or the
// target. Within a bar the stop is checked first, so ties resolve to the
// worse outcome.
func simulateOutcome(candles []models.Candle, entryIndex int, plan *models.TradePlan) (string, float64, int) {
	for j := entryIndex + 1; j < len(candles); j++ {
		c := candles[j]
		if plan.Direction == models.SideLong {
			if c.Low <= plan.StopLoss {
				return OutcomeSL, plan.StopLoss, j
			}
			if c.High >= plan.TakeProfit {
				return OutcomeTP, plan.TakeProfit, j
			}
		} else {
			if c.High >= plan.StopLoss {
				return OutcomeSL, plan.StopLoss, j
			}
			if c.Low <= plan.TakeProfit {
				return OutcomeTP, plan.TakeProfit, j
			}
		}
	}
	return OutcomeEOD, candles[len(candles)-1].Close, len(candles) - 1
}

func sliceAsOf(candles []models.Candle, ts int64) []models.Candle {
	for i, c := range candles {
		if c.OpenTime > ts {
			return candles[:i]
		}
	}
	return candles
}
