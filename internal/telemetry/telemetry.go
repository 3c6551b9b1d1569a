package telemetry

import (
	"context"
	"os"

	"github.com/giobyte8/thumbforge/internal/telemetry/metrics"
)

type TelemetrySvc struct {
	metrics metrics.MetricsSvc
}

func NewTelemetrySvc(ctx context.Context) (*TelemetrySvc, error) {
	otel_enabled := os.Getenv("OTEL_ENABLED") == "true"
	var metricsSvc metrics.MetricsSvc
	var err error

	if otel_enabled {
		metricsSvc, err = metrics.NewOtelMetricsSvc(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		metricsSvc = metrics.NewNoopMetricsSvc()
	}

	return &TelemetrySvc{
		metrics: metricsSvc,
	}, nil
}

// NewTelemetrySvcWith wraps an existing metrics service.
func NewTelemetrySvcWith(metricsSvc metrics.MetricsSvc) *TelemetrySvc {
	return &TelemetrySvc{metrics: metricsSvc}
}

func (t *TelemetrySvc) Metrics() metrics.MetricsSvc {
	return t.metrics
}

func (t *TelemetrySvc) Shutdown(ctx context.Context) error {
	return t.metrics.Shutdown(ctx)
}
