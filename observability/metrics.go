package observability

import "time"

// MetricsRecorder receives request-level measurements from the client.
// Implementations typically forward to Prometheus or StatsD.
type MetricsRecorder interface {
	// RecordHTTPRequest records one completed HTTP request. The path has
	// numeric object ids replaced with a placeholder to keep cardinality
	// bounded.
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)

	// RecordError records a failed operation by kind.
	RecordError(operation, errorType string)
}

type noopMetrics struct{}

// NoopMetricsRecorder returns a MetricsRecorder that discards every
// measurement. It is the default when no recorder is configured.
//
//nolint:ireturn // factory returns the interface for injection
func NoopMetricsRecorder() MetricsRecorder { return noopMetrics{} }

func (noopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
func (noopMetrics) RecordError(string, string)                           {}
