package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
)

type FeedStatus string

const (
	FeedConnecting FeedStatus = "CONNECTING"
	FeedLive       FeedStatus = "LIVE"
	FeedFailed     FeedStatus = "FAILED"
)

// Feed streams live trade events from the market-data provider into the
// aggregator. One goroutine owns the socket; it resubscribes and reconnects
// on its own.
type Feed struct {
	cfg    *config.Config
	agg    *Aggregator
	dialer *websocket.Dialer

	inverse map[string]string // provider symbol -> canonical asset

	mu     sync.RWMutex
	status FeedStatus
}

func NewFeed(cfg *config.Config, agg *Aggregator) *Feed {
	inverse := make(map[string]string, len(cfg.Feed.Symbols))
	for asset, sym := range cfg.Feed.Symbols {
		inverse[sym] = asset
	}
	return &Feed{
		cfg:     cfg,
		agg:     agg,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		inverse: inverse,
		status:  FeedConnecting,
	}
}

func (f *Feed) Status() FeedStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

func (f *Feed) setStatus(s FeedStatus) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type tradeFrame struct {
	Type string `json:"type"`
	Data []struct {
		Symbol string  `json:"s"`
		Price  float64 `json:"p"`
		Time   int64   `json:"t"`
	} `json:"data"`
}

// Run blocks until ctx is cancelled, reconnecting with a fixed delay after
// every connection failure.
func (f *Feed) Run(ctx context.Context) {
	if f.cfg.Feed.Token == "" {
		logger.Error("[FEED] no market data token configured, feed disabled")
		f.setStatus(FeedFailed)
		return
	}

	for {
		if err := f.runOnce(ctx); err != nil {
			logger.Error("[FEED] stream error: %v", err)
		}
		f.setStatus(FeedConnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.cfg.Feed.ReconnectDelay):
		}
	}
}

func (f *Feed) runOnce(ctx context.Context) error {
	url := fmt.Sprintf("%s?token=%s", f.cfg.Feed.URL, f.cfg.Feed.Token)
	conn, _, err := f.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, sym := range f.cfg.Feed.Symbols {
		payload, _ := sonic.Marshal(subscribeMsg{Type: "subscribe", Symbol: sym})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}

	f.setStatus(FeedLive)
	logger.Info("[FEED] connected, %d symbols subscribed", len(f.cfg.Feed.Symbols))

	// the watcher lives only as long as this connection; without the done
	// channel every reconnect would strand one goroutine until ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var frame tradeFrame
		if err := sonic.Unmarshal(raw, &frame); err != nil {
			continue // pings and malformed frames are not our problem
		}
		if frame.Type != "trade" {
			continue
		}
		for _, t := range frame.Data {
			asset, ok := f.inverse[t.Symbol]
			if !ok {
				continue
			}
			f.agg.IngestTick(asset, t.Price, t.Time)
		}
	}
}
