package metrics

import (
	"context"
	"sync"
)

// RecordingMetricsSvc keeps counts in memory. Useful in tests and
// for local debugging.
type RecordingMetricsSvc struct {
	mu     sync.Mutex
	counts map[MetricName]int
}

func NewRecordingMetricsSvc() *RecordingMetricsSvc {
	return &RecordingMetricsSvc{counts: make(map[MetricName]int)}
}

func (r *RecordingMetricsSvc) Increment(
	metric MetricName,
	attrs map[string]string,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[metric]++
}

func (r *RecordingMetricsSvc) Count(metric MetricName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[metric]
}

func (r *RecordingMetricsSvc) Shutdown(ctx context.Context) error {
	return nil
}

// NoopMetricsSvc discards every observation. Used when OTEL_ENABLED is
// not set.
type NoopMetricsSvc struct{}

func NewNoopMetricsSvc() *NoopMetricsSvc {
	return &NoopMetricsSvc{}
}

func (n *NoopMetricsSvc) Increment(MetricName, map[string]string) {}

func (n *NoopMetricsSvc) Shutdown(context.Context) error {
	return nil
}
