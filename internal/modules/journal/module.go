package journal

import (
	"context"

	"go.uber.org/fx"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/journal/service"
	strategysvc "github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			service.NewStore,
			func(s *service.Store) strategysvc.JournalReader { return s },
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Store) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return s.EnsureSchema(ctx)
				},
			})
		}),
	)
}
