package runner

import (
	"context"

	"go.uber.org/fx"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	journalsvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/journal/service"
	marketsvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/market/service"
	strategysvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy/service"
	telemetrysvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/telemetry/service"
	"github.com/Mr-Gerald/NEXUSAI/internal/notify"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(cfg *config.Config, brain *strategysvc.Praetorian, agg *marketsvc.Aggregator,
				journal *journalsvc.Store, specs *config.SpecBook) *Manager {
				opts := Options{
					Universe:          cfg.Market.Universe,
					BrokerSymbols:     cfg.Runner.BrokerSymbols,
					RiskPerTrade:      cfg.Risk.RiskPerTrade,
					AccountCurrency:   cfg.Risk.AccountCurrency,
					WarmupPeriod:      cfg.Runner.WarmupPeriod,
					DecisionInterval:  cfg.Runner.DecisionInterval,
					BroadcastInterval: cfg.Runner.BroadcastInterval,
					IntentTTL:         cfg.Runner.IntentTTL,
					AssociateDelay:    cfg.Runner.AssociateDelay,
					CalibrationBars:   cfg.Runner.CalibrationBars,
				}
				tg := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
				return NewManager(func(connectorID string) *Core {
					o := opts
					o.ConnectorID = connectorID
					return NewCore(o, SystemClock, brain, agg, journal, specs, tg)
				})
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, appCtx context.Context, cfg *config.Config,
			mgr *Manager, hub *telemetrysvc.Hub) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					core := mgr.CreateOrGet(appCtx, cfg.Runner.ConnectorID)
					core.Attach(hub)
					return nil
				},
				OnStop: func(context.Context) error {
					mgr.StopAll()
					return nil
				},
			})
		}),
	)
}
