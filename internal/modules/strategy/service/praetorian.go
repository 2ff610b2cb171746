package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Mr-Gerald/NEXUSAI/internal/helper"
	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

const StrategyID = "PRAETORIAN_X"

const (
	minBars           = 50
	h1MAPeriod        = 20
	trendThreshold    = 0.0025
	atrPeriod         = 14
	atrMultiplier     = 1.5
	rsiPeriod         = 14
	rsiOverbought     = 75.0
	rsiOversold       = 25.0
	rrRatio           = 2.0
	journalLookback   = 50
	journalMinSample  = 10
	journalMinWinRate = 0.40
)

type Status string

const (
	StatusInsufficientData    Status = "INSUFFICIENT_DATA"
	StatusNoH1Trend           Status = "NO_H1_TREND"
	StatusVetoJournalPerf     Status = "VETO_JOURNAL_PERF"
	StatusAwaitingPullback    Status = "AWAITING_PULLBACK"
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusVetoStructure       Status = "VETO_STRUCTURE"
	StatusVetoRSIExhaustion   Status = "VETO_RSI_EXHAUSTION"
	StatusVetoNoStructure     Status = "VETO_NO_STRUCTURE"
	StatusVetoRiskInvalid     Status = "VETO_RISK_INVALID"
	StatusTradeReady          Status = "TRADE_READY"
)

// IsVeto reports whether a status is a deliberate refusal to trade.
func (s Status) IsVeto() bool {
	switch s {
	case StatusVetoJournalPerf, StatusVetoStructure, StatusVetoRSIExhaustion,
		StatusVetoNoStructure, StatusVetoRiskInvalid:
		return true
	}
	return false
}

// Result is the decision outcome of one engine invocation. Plan and
// EntryContext are set only on TRADE_READY.
type Result struct {
	Status       Status
	Message      string
	Plan         *models.TradePlan
	EntryContext *models.EntryContext
	NewState     models.TacticalState
}

// JournalReader is the strategy's view of the trade journal; the read is the
// engine's only suspension point.
type JournalReader interface {
	RecentOutcomes(ctx context.Context, asset, strategy string, limit int) ([]models.Outcome, error)
}

// Praetorian is the decision brain: H1 bias, M15 pullback + engulfing
// confirmation, then a battery of veto gates before a 1:2 trade plan is built.
// It is a pure function of its inputs aside from the journal read.
type Praetorian struct {
	journal JournalReader
	specs   *config.SpecBook
}

func NewPraetorian(journal JournalReader, specs *config.SpecBook) *Praetorian {
	return &Praetorian{journal: journal, specs: specs}
}

func (p *Praetorian) Name() string { return StrategyID }

func (p *Praetorian) Evaluate(ctx context.Context, asset string, snap models.CandleSet, state models.TacticalState) Result {
	h1 := snap[models.TFH1]
	m15 := snap[models.TFM15]

	if len(h1) < minBars || len(m15) < minBars {
		return reject(StatusInsufficientData, "Insufficient data.")
	}

	lastM15 := m15[len(m15)-1]
	prevM15 := m15[len(m15)-2]

	// H1 bias
	h1MA := MovingAverage(h1, h1MAPeriod)
	trendStrength := math.Abs(lastM15.Close-*h1MA) / *h1MA
	if trendStrength < trendThreshold {
		return reject(StatusNoH1Trend, "H1 is choppy. Standing aside.")
	}
	direction := models.SideShort
	if lastM15.Close > *h1MA {
		direction = models.SideLong
	}

	// journal performance veto
	if outcomes, err := p.journal.RecentOutcomes(ctx, asset, StrategyID, journalLookback); err != nil {
		// losing the journal must not halt the decision path
		logger.Error("[BRAIN] %s: journal read failed, skipping performance veto: %v", asset, err)
	} else if len(outcomes) >= journalMinSample {
		wins := 0
		for _, o := range outcomes {
			if o == models.OutcomeWin {
				wins++
			}
		}
		winRate := float64(wins) / float64(len(outcomes))
		if winRate < journalMinWinRate {
			return reject(StatusVetoJournalPerf,
				fmt.Sprintf("VETOED. Historical win rate for this setup is %.0f%%, which is below threshold.", winRate*100))
		}
	}

	// M15 pullback against the bias
	inPullback := prevM15.Close > prevM15.Open
	if direction == models.SideLong {
		inPullback = prevM15.Close < prevM15.Open
	}
	if !inPullback {
		return reject(StatusAwaitingPullback,
			fmt.Sprintf("H1 trend is %s. Awaiting M15 pullback.", direction))
	}

	// engulfing confirmation
	if !IsEngulfing(lastM15, prevM15, direction) {
		return reject(StatusAwaitingConfirmation, "Pullback detected. Awaiting engulfing confirmation.")
	}

	// opposing H1 structure veto
	if h1Swing := LastSwing(h1, direction.Opposite(), 50); h1Swing != nil {
		distance := lastM15.Close - *h1Swing
		if direction == models.SideLong {
			distance = *h1Swing - lastM15.Close
		}
		if distance < ATR(m15, atrPeriod)*2 {
			return reject(StatusVetoStructure, "VETOED. Entry too close to major H1 structure.")
		}
	}

	// RSI exhaustion veto
	m15RSI := RSI(m15, rsiPeriod)
	if direction == models.SideLong && *m15RSI > rsiOverbought {
		return reject(StatusVetoRSIExhaustion,
			fmt.Sprintf("VETOED. M15 RSI is overbought (%.0f). Trend may be exhausted.", *m15RSI))
	}
	if direction == models.SideShort && *m15RSI < rsiOversold {
		return reject(StatusVetoRSIExhaustion,
			fmt.Sprintf("VETOED. M15 RSI is oversold (%.0f). Trend may be exhausted.", *m15RSI))
	}

	// stop structure in the trade's own direction
	entry := lastM15.Close
	swing := LastSwing(m15, direction, 30)
	if swing == nil {
		return reject(StatusVetoNoStructure, "VETOED. No valid M15 structure for SL.")
	}

	atr := ATR(m15, atrPeriod)
	if atr == 0 {
		return reject(StatusVetoRiskInvalid, "VETOED. ATR is zero.")
	}

	spec := p.specs.Spec(asset)

	stop := *swing + atr*atrMultiplier
	if direction == models.SideLong {
		stop = *swing - atr*atrMultiplier
	}
	if math.Abs(entry-stop) < spec.MinStopDistance {
		if direction == models.SideLong {
			stop = entry - spec.MinStopDistance
		} else {
			stop = entry + spec.MinStopDistance
		}
	}
	stop = helper.RoundPrice(stop, spec.Precision)

	risk := math.Abs(entry - stop)
	if risk <= 0 {
		return reject(StatusVetoRiskInvalid, "VETOED. Invalid risk.")
	}

	target := entry - risk*rrRatio
	if direction == models.SideLong {
		target = entry + risk*rrRatio
	}

	plan := &models.TradePlan{
		Asset:      asset,
		Direction:  direction,
		EntryPrice: helper.RoundPrice(entry, spec.Precision),
		StopLoss:   stop,
		TakeProfit: helper.RoundPrice(target, spec.Precision),
	}
	entryCtx := &models.EntryContext{
		H1TrendStrength: trendStrength,
		RSI:             *m15RSI,
		ATR:             atr,
	}

	return Result{
		Status:       StatusTradeReady,
		Message:      "Engulfing confirmed. Firing trade.",
		Plan:         plan,
		EntryContext: entryCtx,
		NewState:     models.TacticalState{},
	}
}

func reject(status Status, msg string) Result {
	return Result{Status: status, Message: msg, NewState: models.TacticalState{}}
}
