package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tphakala/voicekit/internal/conf"
	"github.com/tphakala/voicekit/internal/logger"
	metricspkg "github.com/tphakala/voicekit/internal/observability/metrics"
)

// Endpoint serves the Prometheus /metrics endpoint.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           logger.Logger
}

// NewEndpoint returns an endpoint for settings.Telemetry.MetricsListen. It
// fails when no listen address is configured.
func NewEndpoint(settings *conf.Settings, metrics *Metrics, log logger.Logger) (*Endpoint, error) {
	if settings.Telemetry.MetricsListen == "" {
		return nil, fmt.Errorf("metrics endpoint not configured")
	}

	mux := http.NewServeMux()
	metrics.RegisterHandlers(mux)

	return &Endpoint{
		listenAddress: settings.Telemetry.MetricsListen,
		metrics:       metrics,
		log:           log,
		server: &http.Server{
			Addr:              settings.Telemetry.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is canceled, then shuts the server down gracefully.
func (e *Endpoint) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		e.log.Info("metrics endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("metrics server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
