package market

import (
	"context"

	"go.uber.org/fx"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/market/service"
)

func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			func(cfg *config.Config) *service.Recorder {
				return service.NewRecorder(cfg.Market.DataDir, cfg.Market.Files)
			},
			func(cfg *config.Config, rec *service.Recorder) *service.Aggregator {
				return service.NewAggregator(cfg.Market.Universe, cfg.Market.HistoryLimit, rec)
			},
			service.NewFeed,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, agg *service.Aggregator, feed *service.Feed, appCtx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					service.LoadHistory(agg, cfg.Market.DataDir, cfg.Market.Files)
					go feed.Run(appCtx)
					return nil
				},
			})
		}),
	)
}
