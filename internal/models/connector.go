package models

import "time"

// AccountMetrics are supplied by the broker bridge on every heartbeat and are
// read-only inputs to the orchestrator.
type AccountMetrics struct {
	Balance float64 `json:"balance"`
	Equity  float64 `json:"equity"`
	Margin  float64 `json:"margin"`
	LivePnL float64 `json:"live_pnl"`
}

// LivePosition is one open position as reported by the bridge. Asset carries
// the broker-side symbol, not the canonical asset name.
type LivePosition struct {
	ID           string  `json:"id"`
	Asset        string  `json:"asset"`
	Direction    Side    `json:"direction"`
	Size         float64 `json:"size"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	PnL          float64 `json:"pnl"`
}

// BrokerCommand is one entry of the per-connection FIFO the bridge drains.
type BrokerCommand struct {
	Action     string  `json:"action"`
	Asset      string  `json:"asset"`
	Direction  Side    `json:"direction"`
	Size       float64 `json:"size"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
}

// OpenIntent records an enqueued command until the bridge reveals a matching
// live position (promotion to thesis) or the staleness window elapses.
type OpenIntent struct {
	Asset      string       `json:"asset"`
	Direction  Side         `json:"direction"`
	StopLoss   float64      `json:"stop_loss"`
	TakeProfit float64      `json:"take_profit"`
	Strategy   string       `json:"strategy"`
	Regime     string       `json:"regime"`
	Context    EntryContext `json:"entry_context"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PositionView enriches a live position with its thesis for observers.
type PositionView struct {
	LivePosition
	Thesis *OpenIntent `json:"thesis,omitempty"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// CoreSnapshot is pushed to attached observers on the broadcast cycle.
type CoreSnapshot struct {
	ConnectorID   string            `json:"connector_id"`
	Active        bool              `json:"active"`
	WarmingUp     bool              `json:"warming_up"`
	Metrics       *AccountMetrics   `json:"metrics"`
	Positions     []PositionView    `json:"positions"`
	Logs          []LogEntry        `json:"logs"`
	Tactical      map[string]string `json:"tactical"`
	Summary       string            `json:"summary"`
	EquityHistory []float64         `json:"equity_history"`
}
