package metrics

import (
	"context"
)

// Custom type to represent a metric name,
// providing a type-safe way to handle metric names.
type MetricName string

const (
	ThumbGenRequestReceived MetricName = "thumbnail.request.gen.received"
	ThumbDelRequestReceived MetricName = "thumbnail.request.del.received"
	ThumbCreated            MetricName = "thumbnail.created"
	ThumbCacheHit           MetricName = "thumbnail.cache.hit"
	ThumbWriteFailed        MetricName = "thumbnail.write.failed"
	ThumbDeleted            MetricName = "thumbnail.deleted"
)

type MetricsSvc interface {
	Increment(metric MetricName, attrs map[string]string)
	Shutdown(ctx context.Context) error
}
