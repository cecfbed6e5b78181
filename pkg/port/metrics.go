package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var metricsAddress = flag.String("metrics_address", ":9090",
	"The ip:port serving prometheus metrics on /metrics; empty disables it.")

const metricsShutdownTimeout = 5 * time.Second

// newMetricsMux routes /metrics to the default prometheus registry, which holds every ttlcache metric.
func newMetricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// RunMetricsServer serves prometheus metrics until `ctx` is done.
func RunMetricsServer(ctx context.Context) error {
	if *metricsAddress == "" {
		slog.Info("Metrics server is disabled.")
		return nil
	}

	server := &http.Server{Addr: *metricsAddress, Handler: newMetricsMux(), ReadHeaderTimeout: 10 * time.Second}
	serverErrSignal := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()
	slog.Info("Metrics server is listening.", "address", *metricsAddress)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down metrics server: %w", err)
		}
		return nil
	case err, ok := <-serverErrSignal:
		if !ok {
			return nil
		}
		return fmt.Errorf("metrics server stopped unexpectedly: %w", err)
	}
}
