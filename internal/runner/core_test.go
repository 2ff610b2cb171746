package runner

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	journalsvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/journal/service"
	strategysvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy/service"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("runner-test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

type fakeBrain struct{ res strategysvc.Result }

func (b *fakeBrain) Name() string { return "PRAETORIAN_X" }

func (b *fakeBrain) Evaluate(context.Context, string, models.CandleSet, models.TacticalState) strategysvc.Result {
	return b.res
}

type fakeMarket struct{ h1, m15 int }

func (m *fakeMarket) Snapshot(string) models.CandleSet { return models.CandleSet{} }

func (m *fakeMarket) Len(_ string, tf models.Timeframe) int {
	if tf == models.TFH1 {
		return m.h1
	}
	return m.m15
}

func readyResult() strategysvc.Result {
	return strategysvc.Result{
		Status:  strategysvc.StatusTradeReady,
		Message: "Engulfing confirmed. Firing trade.",
		Plan: &models.TradePlan{
			Asset:      "EUR/USD",
			Direction:  models.SideLong,
			EntryPrice: 1.1000,
			StopLoss:   1.0900,
			TakeProfit: 1.1200,
		},
		EntryContext: &models.EntryContext{H1TrendStrength: 0.01, RSI: 60, ATR: 0.002},
		NewState:     models.TacticalState{},
	}
}

func waiting(status strategysvc.Status, msg string) strategysvc.Result {
	return strategysvc.Result{Status: status, Message: msg, NewState: models.TacticalState{}}
}

func newTestCore(t *testing.T, clk *fakeClock, brain *fakeBrain, journal *journalsvc.Memory) *Core {
	t.Helper()
	require.NoError(t, journal.SetActive(context.Background(), true))

	opts := Options{
		ConnectorID:     "NEXUS-EA-1337",
		Universe:        []string{"EUR/USD"},
		BrokerSymbols:   map[string]string{"EUR/USD": "EURUSDz"},
		RiskPerTrade:    0.01,
		AccountCurrency: "USD",
		WarmupPeriod:    30 * time.Second,
		IntentTTL:       60 * time.Second,
		AssociateDelay:  5 * time.Second,
		CalibrationBars: 50,
	}
	specs := config.NewSpecBook(config.InstrumentSpec{PointValue: 100000, Precision: 5, MinStopDistance: 0.0005}, nil)
	return NewCore(opts, clk, brain, &fakeMarket{h1: 30, m15: 60}, journal, specs, nil)
}

func hasLog(core *Core, fragment string) bool {
	for _, l := range core.Snapshot().Logs {
		if strings.Contains(l.Message, fragment) {
			return true
		}
	}
	return false
}

func TestCoreTradeLifecycle(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	brain := &fakeBrain{res: readyResult()}
	journal := journalsvc.NewMemory()
	core := newTestCore(t, clk, brain, journal)

	core.HandleHeartbeat(models.AccountMetrics{Balance: 100000, Equity: 100000}, nil)

	// during warm-up the decision runs but the trigger stays locked
	core.RunCycle(ctx)
	assert.Empty(t, core.DrainCommands())
	assert.True(t, hasLog(core, "holding fire"))
	assert.True(t, core.Snapshot().WarmingUp)

	// past warm-up: exactly one command, drained exactly once
	clk.advance(31 * time.Second)
	core.RunCycle(ctx)
	cmds := core.DrainCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "OPEN", cmds[0].Action)
	assert.Equal(t, "EURUSDz", cmds[0].Asset, "commands carry the broker symbol")
	assert.Equal(t, models.SideLong, cmds[0].Direction)
	assert.Greater(t, cmds[0].Size, 0.0)
	assert.Equal(t, 1.0900, cmds[0].StopLoss)
	assert.Empty(t, core.DrainCommands(), "the FIFO is emptied by the first drain")

	// the live intent blocks a second entry on the same asset
	core.RunCycle(ctx)
	assert.Empty(t, core.DrainCommands())

	// the bridge reports the fill; association happens after the settle delay
	fill := models.LivePosition{
		ID: "p1", Asset: "EURUSDz", Direction: models.SideLong,
		Size: cmds[0].Size, EntryPrice: 1.1000, CurrentPrice: 1.1000,
	}
	core.HandleHeartbeat(models.AccountMetrics{Equity: 100000}, []models.LivePosition{fill})
	clk.advance(6 * time.Second)
	core.RunCycle(ctx)

	snap := core.Snapshot()
	require.Len(t, snap.Positions, 1)
	require.NotNil(t, snap.Positions[0].Thesis, "a filled intent becomes the position's thesis")
	assert.Equal(t, "EUR/USD", snap.Positions[0].Thesis.Asset)
	assert.InDelta(t, 60, snap.Positions[0].Thesis.Context.RSI, 1e-9)

	// position runs into profit, then disappears from the heartbeat
	fill.PnL = 150
	fill.CurrentPrice = 1.1200
	core.HandleHeartbeat(models.AccountMetrics{Equity: 100150}, []models.LivePosition{fill})
	core.RunCycle(ctx)
	core.HandleHeartbeat(models.AccountMetrics{Equity: 100150}, nil)
	core.RunCycle(ctx)

	entries := journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.OutcomeWin, entries[0].Outcome)
	assert.Equal(t, 150.0, entries[0].PnL)
	assert.Equal(t, "EUR/USD", entries[0].Asset)

	closed := journal.ClosedTrades()
	require.Len(t, closed, 1)
	assert.Equal(t, 1.1200, closed[0].ExitPrice)
	assert.True(t, hasLog(core, "PERFORMANCE REVIEW"))
}

func TestCoreIntentExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	brain := &fakeBrain{res: readyResult()}
	core := newTestCore(t, clk, brain, journalsvc.NewMemory())

	core.HandleHeartbeat(models.AccountMetrics{Equity: 100000}, nil)
	clk.advance(31 * time.Second)
	core.RunCycle(ctx)
	require.Len(t, core.DrainCommands(), 1)

	// the fill never shows up; the stale intent is swept and the asset re-arms
	clk.advance(61 * time.Second)
	core.RunCycle(ctx)
	assert.True(t, hasLog(core, "expired unfilled"))
	require.Len(t, core.DrainCommands(), 1, "a fresh signal can fire once the intent is gone")
}

func TestCoreDecisionLogDedup(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	brain := &fakeBrain{res: waiting(strategysvc.StatusAwaitingPullback, "H1 trend is LONG. Awaiting M15 pullback.")}
	core := newTestCore(t, clk, brain, journalsvc.NewMemory())

	for i := 0; i < 3; i++ {
		clk.advance(5 * time.Second)
		core.RunCycle(ctx)
	}

	count := 0
	for _, l := range core.Snapshot().Logs {
		if strings.Contains(l.Message, "Awaiting M15 pullback") {
			count++
		}
	}
	assert.Equal(t, 1, count, "an unchanged message is logged once")
	assert.Equal(t, "EUR/USD: AWAITING_PULLBACK", core.Snapshot().Summary)

	// same status, new information: a bias flip must still be logged
	brain.res = waiting(strategysvc.StatusAwaitingPullback, "H1 trend is SHORT. Awaiting M15 pullback.")
	core.RunCycle(ctx)
	assert.True(t, hasLog(core, "H1 trend is SHORT"))

	// a transition is logged again
	brain.res = waiting(strategysvc.StatusAwaitingConfirmation, "Pullback detected. Awaiting engulfing confirmation.")
	core.RunCycle(ctx)
	assert.True(t, hasLog(core, "Awaiting engulfing confirmation"))
	assert.Equal(t, "EUR/USD: AWAITING_CONFIRMATION", core.Snapshot().Summary)
}

func TestCoreInactiveSkipsEvaluation(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	brain := &fakeBrain{res: readyResult()}
	journal := journalsvc.NewMemory()
	core := newTestCore(t, clk, brain, journal)

	core.HandleHeartbeat(models.AccountMetrics{Equity: 100000}, nil)
	require.NoError(t, core.SetActive(ctx, false))

	clk.advance(31 * time.Second)
	core.RunCycle(ctx)
	assert.Empty(t, core.DrainCommands(), "a disengaged core never trades")

	persisted, err := journal.IsActive(ctx)
	require.NoError(t, err)
	assert.False(t, persisted, "the switch survives a restart")

	require.NoError(t, core.SetActive(ctx, true))
	core.RunCycle(ctx)
	assert.Len(t, core.DrainCommands(), 1)
}

func TestCoreEquityHistoryBounded(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	core := newTestCore(t, clk, &fakeBrain{res: waiting(strategysvc.StatusNoH1Trend, "choppy")}, journalsvc.NewMemory())

	for i := 0; i < equityHistLimit+50; i++ {
		core.HandleHeartbeat(models.AccountMetrics{Equity: 100000 + float64(i)}, nil)
	}
	hist := core.Snapshot().EquityHistory
	assert.Len(t, hist, equityHistLimit)
	assert.Equal(t, 100000.0+float64(equityHistLimit+49), hist[len(hist)-1])
}
