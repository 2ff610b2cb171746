package strategy

import (
	"go.uber.org/fx"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy/service"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			service.NewPraetorian, // *service.Praetorian (needs JournalReader + SpecBook)
		),
	)
}
