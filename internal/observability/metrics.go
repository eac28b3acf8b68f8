package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/notehub/notes-api"

// AuthMetrics records authorization gate outcomes.
//
// Implementations must be safe for concurrent use and must not block.
type AuthMetrics interface {
	// RecordDecision counts one gate decision. outcome is "success" or a failure kind.
	RecordDecision(ctx context.Context, transport, outcome string)
}

type authMetrics struct {
	decisions metric.Int64Counter
}

// NewAuthMetrics creates the auth.decisions counter on meter
func NewAuthMetrics(meter metric.Meter) (AuthMetrics, error) {
	decisions, err := meter.Int64Counter(
		"auth.decisions",
		metric.WithDescription("Authorization gate decisions by transport and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth.decisions counter: %w", err)
	}
	return &authMetrics{decisions: decisions}, nil
}

func (m *authMetrics) RecordDecision(ctx context.Context, transport, outcome string) {
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.transport", transport),
		attribute.String("auth.outcome", outcome),
	))
}

type noopAuthMetrics struct{}

func (noopAuthMetrics) RecordDecision(context.Context, string, string) {}

// NoopAuthMetrics returns a recorder that discards everything
func NoopAuthMetrics() AuthMetrics {
	return noopAuthMetrics{}
}

// MetricsProvider owns the meter provider and the Prometheus registry it exports into
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// NewMetricsProvider wires an OpenTelemetry meter provider to a fresh Prometheus registry
func NewMetricsProvider() (*MetricsProvider, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return &MetricsProvider{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		registry: registry,
	}, nil
}

// Meter returns the application meter
func (p *MetricsProvider) Meter() metric.Meter {
	return p.provider.Meter(meterName)
}

// Handler serves the registry in the Prometheus text format
func (p *MetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider
func (p *MetricsProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}
