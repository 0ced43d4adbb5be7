package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/panyam/authflow/memprovider"
	"github.com/panyam/authflow/server"
)

type serveConfig struct {
	addr string
}

func newServeCmd(global *globalFlags) *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the identity server",
		Long: `Run the identity server. It accepts OAuth2 password grants, account
signups and profile lookups, and exposes Prometheus metrics at /metrics.
Settings come from AUTHFLOW_* environment variables; flags override them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, global, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.addr, "addr", "", "listen address (overrides AUTHFLOW_LISTEN_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalFlags, cfg *serveConfig) error {
	srvCfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.addr != "" {
		srvCfg.Addr = cfg.addr
	}

	logger := global.logger(cmd.ErrOrStderr())

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry := memprovider.NewRegistry(memprovider.WithRegistryLogger(logger))
	srv := server.New(srvCfg, registry, server.WithLogger(logger), server.WithPrometheus(promReg))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
