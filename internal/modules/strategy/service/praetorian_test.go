package service

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("strategy-test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubJournal struct {
	outcomes []models.Outcome
	err      error
}

func (s *stubJournal) RecentOutcomes(context.Context, string, string, int) ([]models.Outcome, error) {
	return s.outcomes, s.err
}

func testSpecs() *config.SpecBook {
	return config.NewSpecBook(config.InstrumentSpec{
		PointValue:      100000,
		Precision:       5,
		MinStopDistance: 0.0005,
	}, nil)
}

// trendingLongFixture is an uptrending market that clears every gate:
// M15 well above the H1 mean, a bearish pullback bar, a bullish engulfing
// bar, a swing low for the stop, and an RSI window with two-sided moves.
func trendingLongFixture() models.CandleSet {
	m15 := make([]models.Candle, 60)
	for i := range m15 {
		m15[i] = models.Candle{
			OpenTime: int64(i) * 900_000,
			Open:     1.0050, High: 1.0055, Low: 1.0035, Close: 1.0050,
		}
	}
	// alternate closes so the final RSI window is not one-sided
	for i := 46; i <= 57; i += 2 {
		m15[i].Close = 1.0040
	}
	m15[45].Low = 1.0000 // the swing low the stop hangs off
	m15[58] = models.Candle{OpenTime: 58 * 900_000, Open: 1.0060, High: 1.0065, Low: 1.0035, Close: 1.0040}
	m15[59] = models.Candle{OpenTime: 59 * 900_000, Open: 1.0030, High: 1.0105, Low: 1.0025, Close: 1.0100}

	h1 := make([]models.Candle, 55)
	for i := range h1 {
		h1[i] = models.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     1.0, High: 1.0 + float64(i)*0.0001, Low: 0.999, Close: 1.0,
		}
	}
	return models.CandleSet{models.TFM15: m15, models.TFH1: h1}
}

func TestEvaluateTradeReadyLong(t *testing.T) {
	p := NewPraetorian(&stubJournal{}, testSpecs())

	res := p.Evaluate(context.Background(), "EUR/USD", trendingLongFixture(), models.TacticalState{})

	require.Equal(t, StatusTradeReady, res.Status, res.Message)
	require.NotNil(t, res.Plan)
	require.NotNil(t, res.EntryContext)

	plan := res.Plan
	assert.Equal(t, models.SideLong, plan.Direction)
	assert.InDelta(t, 1.0100, plan.EntryPrice, 1e-9)
	// swing 1.0000 minus 1.5 x ATR(0.0025)
	assert.InDelta(t, 0.99625, plan.StopLoss, 1e-9)
	assert.InDelta(t, 1.0375, plan.TakeProfit, 1e-9)
	// the target sits exactly twice the stop distance away
	assert.InDelta(t, 2*(plan.EntryPrice-plan.StopLoss), plan.TakeProfit-plan.EntryPrice, 1e-9)

	assert.InDelta(t, 0.01, res.EntryContext.H1TrendStrength, 1e-9)
	assert.InDelta(t, 0.0025, res.EntryContext.ATR, 1e-9)
	assert.InDelta(t, 100-700.0/19.0, res.EntryContext.RSI, 1e-9)
}

func TestEvaluateJournalVeto(t *testing.T) {
	// 6 wins out of 20 is a 30% win rate, below the 40% floor
	outcomes := make([]models.Outcome, 20)
	for i := range outcomes {
		outcomes[i] = models.OutcomeLoss
		if i < 6 {
			outcomes[i] = models.OutcomeWin
		}
	}
	p := NewPraetorian(&stubJournal{outcomes: outcomes}, testSpecs())

	res := p.Evaluate(context.Background(), "EUR/USD", trendingLongFixture(), models.TacticalState{})
	assert.Equal(t, StatusVetoJournalPerf, res.Status)
	assert.True(t, res.Status.IsVeto())
	assert.Nil(t, res.Plan)
}

func TestEvaluateSmallSampleSkipsVeto(t *testing.T) {
	// 9 straight losses is still below the minimum sample
	outcomes := make([]models.Outcome, 9)
	for i := range outcomes {
		outcomes[i] = models.OutcomeLoss
	}
	p := NewPraetorian(&stubJournal{outcomes: outcomes}, testSpecs())

	res := p.Evaluate(context.Background(), "EUR/USD", trendingLongFixture(), models.TacticalState{})
	assert.Equal(t, StatusTradeReady, res.Status, res.Message)
}

func TestEvaluateJournalErrorDoesNotHalt(t *testing.T) {
	p := NewPraetorian(&stubJournal{err: errors.New("db down")}, testSpecs())

	res := p.Evaluate(context.Background(), "EUR/USD", trendingLongFixture(), models.TacticalState{})
	assert.Equal(t, StatusTradeReady, res.Status, "a failed journal read must skip the veto, not block the trade")
}

func TestEvaluateInsufficientData(t *testing.T) {
	p := NewPraetorian(&stubJournal{}, testSpecs())

	snap := models.CandleSet{
		models.TFM15: make([]models.Candle, 10),
		models.TFH1:  make([]models.Candle, 10),
	}
	res := p.Evaluate(context.Background(), "EUR/USD", snap, models.TacticalState{})
	assert.Equal(t, StatusInsufficientData, res.Status)
}

func TestEvaluateAwaitingPullback(t *testing.T) {
	snap := trendingLongFixture()
	m15 := snap[models.TFM15]
	// bullish bar before the trigger: trend confirmed but no pullback yet
	m15[58].Open = 1.0040
	m15[58].Close = 1.0060

	p := NewPraetorian(&stubJournal{}, testSpecs())
	res := p.Evaluate(context.Background(), "EUR/USD", snap, models.TacticalState{})
	assert.Equal(t, StatusAwaitingPullback, res.Status)
}

func TestEvaluateRSIExhaustionVeto(t *testing.T) {
	snap := trendingLongFixture()
	m15 := snap[models.TFM15]
	// flatten the wiggles: the RSI window becomes one-sided and overbought
	for i := 46; i <= 57; i++ {
		m15[i].Close = 1.0050
	}

	p := NewPraetorian(&stubJournal{}, testSpecs())
	res := p.Evaluate(context.Background(), "EUR/USD", snap, models.TacticalState{})
	assert.Equal(t, StatusVetoRSIExhaustion, res.Status)
}
