package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// metricsServer exposes a registry at /metrics next to the console.
type metricsServer struct {
	listener net.Listener
	srv      *http.Server
	done     chan struct{}
}

func startMetricsServer(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.Code("LISTEN_FAILED").With("addr", addr).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	m := &metricsServer{
		listener: ln,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		done:     make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("metrics server started", "addr", ln.Addr().String())
	return m, nil
}

// Addr returns the address the server listens on
func (m *metricsServer) Addr() string {
	return m.listener.Addr().String()
}

func (m *metricsServer) Stop(ctx context.Context) error {
	err := m.srv.Shutdown(ctx)
	<-m.done
	if err != nil {
		return oops.Code("SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}
