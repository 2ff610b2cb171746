package telemetry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"

	"github.com/Mr-Gerald/NEXUSAI/internal/modules/config"
	"github.com/Mr-Gerald/NEXUSAI/internal/modules/telemetry/service"
	"github.com/Mr-Gerald/NEXUSAI/internal/runner"
)

// NewMux exposes the snapshot stream plus basic liveness probes on the admin
// port.
func NewMux(hub *service.Hub, mgr *runner.Manager, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", hub.Handler())

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"observers": hub.ClientCount(),
		}
		if core, ok := mgr.Get(cfg.Runner.ConnectorID); ok {
			snap := core.Snapshot()
			resp["active"] = snap.Active
			resp["warming_up"] = snap.WarmingUp
			resp["summary"] = snap.Summary
		}
		w.Header().Set("Content-Type", "application/json")
		payload, _ := sonic.Marshal(resp)
		_, _ = w.Write(payload)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, mux *http.ServeMux) {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.AdminPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("telemetry",
		fx.Provide(
			service.NewHub,
			NewMux,
		),
		fx.Invoke(RunHTTP),
	)
}
