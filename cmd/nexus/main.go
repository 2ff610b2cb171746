package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/journal"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/market"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/postgres"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/strategy"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/telemetry"
	"github.com/Mr-Gerald/NEXUSAI/internal/runner"
	"github.com/Mr-Gerald/NEXUSAI/pkg/logger"
	"github.com/Mr-Gerald/NEXUSAI/pkg/tracing"
)

const serviceName = "nexus-core"

func main() {
	if err := logger.Init(serviceName); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		journal.Module(),
		market.Module(),
		strategy.Module(),
		runner.Module(),
		telemetry.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) {
			if !cfg.Tracing.Enabled {
				return
			}
			tracing.SetServiceName(serviceName)
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			if err != nil {
				logger.Error("init tracer: %v", err)
				return
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
		}),
	)
	app.Run()
}
