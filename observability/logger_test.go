package observability_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netboxapi/go-netboxapi/observability"
)

func TestNoopLogger(t *testing.T) {
	t.Parallel()

	logger := observability.NoopLogger()
	assert.NotNil(t, logger)

	// Every level accepts arbitrary fields without side effects.
	logger.Debug("debug", observability.Field{Key: "k", Value: 1})
	logger.Warn("warn")
	logger.Error("error", observability.Field{Key: "err", Value: "boom"})
}

func TestNoopMetricsRecorder(t *testing.T) {
	t.Parallel()

	metrics := observability.NoopMetricsRecorder()
	assert.NotNil(t, metrics)

	metrics.RecordHTTPRequest("GET", "/api/ipam/vrfs/:id/", 200, time.Millisecond)
	metrics.RecordError("http_request", "NetworkError")
}
