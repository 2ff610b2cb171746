// Package runner hosts the execution orchestrator: one Core per broker
// connection, owning the decision loop, the command FIFO the bridge drains,
// and the intent/thesis lifecycle that ties live positions back to the
// strategy context that opened them.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	strategysvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy/service"
	"github.com/Mr-Gerald/NEXUSAI/internal/risk"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

const (
	logRingSize     = 100
	equityHistLimit = 500
	h1EligibleBars  = 20
)

// Brain is the decision engine evaluated once per asset per cycle.
type Brain interface {
	Name() string
	Evaluate(ctx context.Context, asset string, snap models.CandleSet, state models.TacticalState) strategysvc.Result
}

// MarketData is the read side of the candle store.
type MarketData interface {
	Snapshot(asset string) models.CandleSet
	Len(asset string, tf models.Timeframe) int
}

// JournalStore persists trade history and the activation flag.
type JournalStore interface {
	AppendJournalEntry(ctx context.Context, e models.JournalEntry) error
	AppendClosedTrade(ctx context.Context, t models.ClosedTrade) error
	IsActive(ctx context.Context) (bool, error)
	SetActive(ctx context.Context, active bool) error
}

// Notifier receives human-facing trade alerts. Implementations must be
// non-blocking or cheap; a nil-safe no-op is acceptable.
type Notifier interface {
	Sendf(format string, args ...any)
}

// Observer receives state snapshots on the broadcast cycle.
type Observer interface {
	Publish(snap models.CoreSnapshot)
}

type Options struct {
	ConnectorID     string
	Universe        []string
	BrokerSymbols   map[string]string // canonical asset -> broker symbol
	RiskPerTrade    float64
	AccountCurrency string

	WarmupPeriod      time.Duration
	DecisionInterval  time.Duration
	BroadcastInterval time.Duration
	IntentTTL         time.Duration
	AssociateDelay    time.Duration
	CalibrationBars   int
}

// assocTask defers intent-to-position matching until the bridge has had time
// to report the fill.
type assocTask struct {
	asset string
	due   time.Time
	known map[string]struct{} // position ids visible when the command was enqueued
}

// Core orchestrates one broker connection. All mutable state is behind one
// mutex; the bridge, the decision loop, and the broadcast loop are the only
// writers.
type Core struct {
	opts    Options
	clock   Clock
	brain   Brain
	market  MarketData
	journal JournalStore
	specs   *config.SpecBook
	notify  Notifier

	mu         sync.Mutex
	active     bool
	warmUntil  time.Time
	metrics    *models.AccountMetrics
	positions  []models.LivePosition
	known      map[string]models.LivePosition // id -> position seen last cycle
	theses     map[string]models.OpenIntent   // position id -> entry thesis
	intents    map[string]models.OpenIntent   // canonical asset -> pending intent
	pending    []assocTask
	commands   []models.BrokerCommand
	tactical   map[string]models.TacticalState
	lastStatus map[string]strategysvc.Status // feeds the tactical summary
	lastMsg    map[string]string             // dedup key for the decision log
	logs       []models.LogEntry
	equityHist []float64

	observers []Observer
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCore(opts Options, clock Clock, brain Brain, market MarketData, journal JournalStore, specs *config.SpecBook, notify Notifier) *Core {
	c := &Core{
		opts:       opts,
		clock:      clock,
		brain:      brain,
		market:     market,
		journal:    journal,
		specs:      specs,
		notify:     notify,
		warmUntil:  clock.Now().Add(opts.WarmupPeriod),
		known:      make(map[string]models.LivePosition),
		theses:     make(map[string]models.OpenIntent),
		intents:    make(map[string]models.OpenIntent),
		tactical:   make(map[string]models.TacticalState),
		lastStatus: make(map[string]strategysvc.Status),
		lastMsg:    make(map[string]string),
	}

	active, err := journal.IsActive(context.Background())
	if err != nil {
		logger.Error("[CORE %s] read activation flag: %v, starting inactive", opts.ConnectorID, err)
	}
	c.active = active

	c.appendLog("INFO", fmt.Sprintf("Core online. Warming up for %s.", opts.WarmupPeriod))
	return c
}

// Attach registers an observer for broadcast snapshots.
func (c *Core) Attach(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Start launches the decision and broadcast loops.
func (c *Core) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{}, 2)

	go func() {
		defer func() { c.done <- struct{}{} }()
		t := time.NewTicker(c.opts.DecisionInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.RunCycle(ctx)
			}
		}
	}()

	go func() {
		defer func() { c.done <- struct{}{} }()
		t := time.NewTicker(c.opts.BroadcastInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.Broadcast()
			}
		}
	}()
}

func (c *Core) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	<-c.done
}

// RunCycle executes one decision pass. A panic in any phase is contained
// here so a single bad cycle cannot take the process down.
func (c *Core) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[CORE %s] decision cycle panicked: %v", c.opts.ConnectorID, r)
		}
	}()

	span := opentracing.StartSpan("runner.decision_cycle")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	c.reconcileClosed(ctx, now)
	c.expireIntents(now)
	c.associatePending(now)

	if !c.active {
		return
	}
	c.evaluateUniverse(ctx, now)
}

// reconcileClosed detects positions that vanished since the last cycle and
// turns their theses into journal history.
func (c *Core) reconcileClosed(ctx context.Context, now time.Time) {
	current := make(map[string]models.LivePosition, len(c.positions))
	for _, p := range c.positions {
		current[p.ID] = p
	}

	for id, last := range c.known {
		if _, open := current[id]; open {
			continue
		}
		thesis, ok := c.theses[id]
		if !ok {
			continue
		}
		delete(c.theses, id)

		outcome := models.OutcomeLoss
		if last.PnL > 0 {
			outcome = models.OutcomeWin
		}
		entry := models.JournalEntry{
			Asset:     thesis.Asset,
			Strategy:  thesis.Strategy,
			Regime:    thesis.Regime,
			Context:   thesis.Context,
			Outcome:   outcome,
			PnL:       last.PnL,
			Timestamp: now,
		}
		if err := c.journal.AppendJournalEntry(ctx, entry); err != nil {
			logger.Error("[CORE %s] journal write for %s: %v", c.opts.ConnectorID, thesis.Asset, err)
		}
		closed := models.ClosedTrade{
			Asset:      thesis.Asset,
			Direction:  last.Direction,
			Size:       last.Size,
			EntryPrice: last.EntryPrice,
			ExitPrice:  last.CurrentPrice,
			PnL:        last.PnL,
			Strategy:   thesis.Strategy,
			Regime:     thesis.Regime,
			Timestamp:  now,
		}
		if err := c.journal.AppendClosedTrade(ctx, closed); err != nil {
			logger.Error("[CORE %s] blotter write for %s: %v", c.opts.ConnectorID, thesis.Asset, err)
		}
		c.appendLog("INFO", fmt.Sprintf("PERFORMANCE REVIEW: %s closed as %s (%.2f).", thesis.Asset, outcome, last.PnL))
	}

	c.known = current
}

func (c *Core) expireIntents(now time.Time) {
	for asset, in := range c.intents {
		if now.Sub(in.CreatedAt) > c.opts.IntentTTL {
			delete(c.intents, asset)
			c.appendLog("INFO", fmt.Sprintf("Intent for %s expired unfilled.", asset))
		}
	}
}

// associatePending matches due tasks against positions that appeared since
// the command was enqueued. An unmatched task is dropped; its intent stays
// pending until the TTL sweep clears it.
func (c *Core) associatePending(now time.Time) {
	remaining := c.pending[:0]
	for _, task := range c.pending {
		if now.Before(task.due) {
			remaining = append(remaining, task)
			continue
		}
		intent, ok := c.intents[task.asset]
		if !ok {
			continue
		}
		broker := c.brokerSymbol(task.asset)
		for _, p := range c.positions {
			if _, seen := task.known[p.ID]; seen {
				continue
			}
			if p.Asset != broker {
				continue
			}
			c.theses[p.ID] = intent
			delete(c.intents, task.asset)
			c.appendLog("INFO", fmt.Sprintf("Position %s associated with %s thesis.", p.ID, task.asset))
			break
		}
	}
	c.pending = remaining
}

func (c *Core) evaluateUniverse(ctx context.Context, now time.Time) {
	warming := now.Before(c.warmUntil)
	openSymbols := make(map[string]struct{}, len(c.positions))
	for _, p := range c.positions {
		openSymbols[p.Asset] = struct{}{}
	}

	for _, asset := range c.opts.Universe {
		if c.market.Len(asset, models.TFH1) <= h1EligibleBars ||
			c.market.Len(asset, models.TFM15) <= c.opts.CalibrationBars {
			continue
		}
		if _, open := openSymbols[c.brokerSymbol(asset)]; open {
			delete(c.tactical, asset)
			continue
		}
		if _, pending := c.intents[asset]; pending {
			delete(c.tactical, asset)
			continue
		}

		res := c.brain.Evaluate(ctx, asset, c.market.Snapshot(asset), c.tactical[asset])
		c.tactical[asset] = res.NewState
		c.logDecision(asset, res)

		if res.Status != strategysvc.StatusTradeReady || res.Plan == nil {
			continue
		}
		c.fire(asset, res, warming, now)
	}
}

// fire sizes a TRADE_READY plan and, outside warm-up, enqueues the broker
// command and records the open intent.
func (c *Core) fire(asset string, res strategysvc.Result, warming bool, now time.Time) {
	if c.metrics == nil {
		c.appendLog("RISK", fmt.Sprintf("%s: trade ready but no account metrics yet.", asset))
		return
	}
	plan := res.Plan

	size := risk.CalculateSize(c.metrics.Equity, c.opts.RiskPerTrade,
		plan.EntryPrice, plan.StopLoss, asset, c.opts.AccountCurrency, c.specs)
	if size <= 0 {
		c.appendLog("RISK", fmt.Sprintf("%s: signal dropped, computed size is zero.", asset))
		return
	}
	if warming {
		c.appendLog("INFO", fmt.Sprintf("%s: signal during warm-up, holding fire.", asset))
		return
	}

	known := make(map[string]struct{}, len(c.positions))
	for _, p := range c.positions {
		known[p.ID] = struct{}{}
	}

	c.commands = append(c.commands, models.BrokerCommand{
		Action:     "OPEN",
		Asset:      c.brokerSymbol(asset),
		Direction:  plan.Direction,
		Size:       size,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
	})
	intent := models.OpenIntent{
		Asset:      asset,
		Direction:  plan.Direction,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		Strategy:   c.brain.Name(),
		Regime:     "TRENDING",
		CreatedAt:  now,
	}
	if res.EntryContext != nil {
		intent.Context = *res.EntryContext
	}
	c.intents[asset] = intent
	c.pending = append(c.pending, assocTask{
		asset: asset,
		due:   now.Add(c.opts.AssociateDelay),
		known: known,
	})

	c.appendLog("EXECUTION", fmt.Sprintf("FIRING: %s %s %.2f lots @ %.5f (SL %.5f, TP %.5f).",
		plan.Direction, asset, size, plan.EntryPrice, plan.StopLoss, plan.TakeProfit))
	if c.notify != nil {
		c.notify.Sendf("⚔️ %s %s %.2f lots @ %.5f\nSL %.5f | TP %.5f",
			plan.Direction, asset, size, plan.EntryPrice, plan.StopLoss, plan.TakeProfit)
	}
}

// logDecision appends a decision message unless it repeats the last one
// logged for the asset. The dedup keys on the message, not the status: the
// same status can carry new information, like a bias flip while awaiting a
// pullback.
func (c *Core) logDecision(asset string, res strategysvc.Result) {
	c.lastStatus[asset] = res.Status
	if c.lastMsg[asset] == res.Message {
		return
	}
	c.lastMsg[asset] = res.Message

	level := "INFO"
	switch {
	case res.Status == strategysvc.StatusTradeReady:
		level = "EXECUTION"
	case res.Status.IsVeto():
		level = "VETO"
	}
	c.appendLog(level, fmt.Sprintf("[%s] %s", asset, res.Message))
}

// HandleHeartbeat ingests one bridge poll: account metrics plus the full set
// of open positions.
func (c *Core) HandleHeartbeat(metrics models.AccountMetrics, positions []models.LivePosition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = &metrics
	c.positions = positions
	c.equityHist = append(c.equityHist, metrics.Equity)
	if len(c.equityHist) > equityHistLimit {
		c.equityHist = c.equityHist[len(c.equityHist)-equityHistLimit:]
	}
}

// DrainCommands hands the queued commands to the bridge and empties the FIFO.
// The bridge is the single consumer; each command is delivered exactly once.
func (c *Core) DrainCommands() []models.BrokerCommand {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.commands
	c.commands = nil
	return out
}

// SetActive flips the trading switch and persists it so a restart resumes in
// the same mode.
func (c *Core) SetActive(ctx context.Context, active bool) error {
	state := "DISENGAGED"
	if active {
		state = "ENGAGED"
	}

	c.mu.Lock()
	c.active = active
	c.appendLog("INFO", fmt.Sprintf("Core %s by operator.", state))
	c.mu.Unlock()

	return c.journal.SetActive(ctx, active)
}

// Snapshot assembles the observer-facing view of the core.
func (c *Core) Snapshot() models.CoreSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	views := make([]models.PositionView, 0, len(c.positions))
	for _, p := range c.positions {
		v := models.PositionView{LivePosition: p}
		if thesis, ok := c.theses[p.ID]; ok {
			t := thesis
			v.Thesis = &t
		}
		views = append(views, v)
	}

	tactical := make(map[string]string, len(c.lastStatus))
	for asset, st := range c.lastStatus {
		tactical[asset] = string(st)
	}

	logs := make([]models.LogEntry, len(c.logs))
	copy(logs, c.logs)
	hist := make([]float64, len(c.equityHist))
	copy(hist, c.equityHist)

	return models.CoreSnapshot{
		ConnectorID:   c.opts.ConnectorID,
		Active:        c.active,
		WarmingUp:     now.Before(c.warmUntil),
		Metrics:       c.metrics,
		Positions:     views,
		Logs:          logs,
		Tactical:      tactical,
		Summary:       c.summary(),
		EquityHistory: hist,
	}
}

// Broadcast pushes the current snapshot to every attached observer.
func (c *Core) Broadcast() {
	snap := c.Snapshot()

	c.mu.Lock()
	obs := make([]Observer, len(c.observers))
	copy(obs, c.observers)
	c.mu.Unlock()

	for _, o := range obs {
		o.Publish(snap)
	}
}

// summary picks the single most actionable status across the universe.
// Caller holds the lock.
func (c *Core) summary() string {
	priority := []strategysvc.Status{
		strategysvc.StatusTradeReady,
		strategysvc.StatusAwaitingConfirmation,
		strategysvc.StatusAwaitingPullback,
		strategysvc.StatusNoH1Trend,
	}
	for _, want := range priority {
		for _, asset := range c.opts.Universe {
			if c.lastStatus[asset] == want {
				return fmt.Sprintf("%s: %s", asset, want)
			}
		}
	}
	return "SCANNING"
}

func (c *Core) brokerSymbol(asset string) string {
	if sym, ok := c.opts.BrokerSymbols[asset]; ok {
		return sym
	}
	return asset
}

// appendLog pushes one entry onto the bounded decision log. Caller holds the
// lock except during construction.
func (c *Core) appendLog(level, msg string) {
	c.logs = append(c.logs, models.LogEntry{
		Time:    c.clock.Now(),
		Level:   level,
		Message: msg,
	})
	if len(c.logs) > logRingSize {
		c.logs = c.logs[len(c.logs)-logRingSize:]
	}
}
