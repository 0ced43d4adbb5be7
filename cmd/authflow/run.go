package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/panyam/authflow"
	"github.com/panyam/authflow/client"
	"github.com/panyam/authflow/internal/tracing"
	"github.com/panyam/authflow/memprovider"
)

type runConfig struct {
	provider    string
	serverURL   string
	latency     time.Duration
	metricsAddr string
}

func newRunCmd(global *globalFlags) *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive login/signup console",
		Long: `Start an interactive console that shows the login form, the signup form
or the signed-in greeting. Type "help" for the commands. With --provider http
the console talks to an identity server (see "authflow serve").

Provider calls are traced; set AUTHFLOW_OTEL_ENDPOINT to export the spans.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd, global, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.provider, "provider", "memory", "identity provider (memory or http)")
	cmd.Flags().StringVar(&cfg.serverURL, "server-url", "", "identity server URL (overrides AUTHFLOW_SERVER_URL)")
	cmd.Flags().DurationVar(&cfg.latency, "latency", 0, "artificial delay per request for the memory provider")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (disabled when empty)")
	return cmd
}

func runConsole(cmd *cobra.Command, global *globalFlags, cfg *runConfig) error {
	logger := global.logger(cmd.ErrOrStderr())

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	traceCfg, err := tracing.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tp, shutdownTracing, err := tracing.Setup(cmd.Context(), "authflow", version, traceCfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(cmd.Context())); err != nil {
			logger.Warn("flushing spans", "error", err)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.metricsAddr != "" {
		ms, err := startMetricsServer(cfg.metricsAddr, promReg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := ms.Stop(context.WithoutCancel(cmd.Context())); err != nil {
				logger.Warn("stopping metrics server", "error", err)
			}
		}()
	}

	app := newConsoleApp(provider, logger, authflow.NewMetrics(promReg), tp)
	app.Start()
	defer app.Close()

	return newConsole(app, cmd.OutOrStdout()).run(cmd.Context(), cmd.InOrStdin())
}

func newProvider(cfg *runConfig, logger *slog.Logger) (authflow.Provider, error) {
	switch cfg.provider {
	case "memory":
		return memprovider.New(
			memprovider.WithLatency(cfg.latency),
			memprovider.WithRegistry(memprovider.NewRegistry(memprovider.WithRegistryLogger(logger))),
		), nil
	case "http":
		clientCfg, err := client.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if cfg.serverURL != "" {
			clientCfg.ServerURL = cfg.serverURL
		}
		return client.NewAuthClient(clientCfg, client.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want memory or http)", cfg.provider)
	}
}

// newConsoleApp builds the App the console drives
func newConsoleApp(p authflow.Provider, logger *slog.Logger, metrics *authflow.Metrics, tp trace.TracerProvider) *authflow.App {
	return authflow.NewApp(p,
		authflow.WithLogger(logger),
		authflow.WithMetrics(metrics),
		authflow.WithTracerProvider(tp),
	)
}
