package netboxapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboxapi/go-netboxapi/internal/testutil"
	"github.com/netboxapi/go-netboxapi/observability"
)

func TestResponseDecodeJSONKeepsNumbers(t *testing.T) {
	t.Parallel()

	resp := &Response{StatusCode: http.StatusOK, Body: []byte(`{"id": 1, "weight": 1.5}`)}

	var body map[string]any
	require.NoError(t, resp.DecodeJSON(&body))

	assert.Equal(t, json.Number("1"), body["id"])
	assert.Equal(t, json.Number("1.5"), body["weight"])
}

func TestResponseIsSuccess(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Response{StatusCode: 200}).IsSuccess())
	assert.True(t, (&Response{StatusCode: 204}).IsSuccess())
	assert.False(t, (&Response{StatusCode: 404}).IsSuccess())
	assert.False(t, (&Response{StatusCode: 500}).IsSuccess())
}

func TestTransportDoesNotTurnStatusesIntoErrors(t *testing.T) {
	t.Parallel()

	srv := testutil.NewServer(t, map[testutil.Route]http.HandlerFunc{
		{Method: "GET", Path: "/api/missing/"}: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Not Found", http.StatusNotFound)
		},
	})
	t.Cleanup(srv.Close)

	transport := newRestyTransport(&Config{
		BaseURL:            srv.URL + "/api",
		RateLimitPerMinute: DefaultRateLimit,
		Timeout:            DefaultTimeout,
		Logger:             observability.NoopLogger(),
		Metrics:            observability.NoopMetricsRecorder(),
	})

	resp, err := transport.Get(context.Background(), srv.URL+"/api/missing/", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransportNetworkErrors(t *testing.T) {
	t.Parallel()

	transport := newRestyTransport(&Config{
		BaseURL:            "http://127.0.0.1:1/api", // nothing listens here
		RateLimitPerMinute: DefaultRateLimit,
		Timeout:            DefaultTimeout,
		Logger:             observability.NoopLogger(),
		Metrics:            observability.NoopMetricsRecorder(),
	})

	_, err := transport.Get(context.Background(), "http://127.0.0.1:1/api/x/", nil)
	require.Error(t, err)
}

// recordingLogger captures log messages for assertions.
type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *recordingLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

func (l *recordingLogger) Debug(msg string, _ ...observability.Field) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...observability.Field)  { l.record(msg) }
func (l *recordingLogger) Error(msg string, _ ...observability.Field) { l.record(msg) }

type recordedRequest struct {
	method string
	path   string
	status int
}

// recordingMetrics captures measurements for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
	errors   []string
}

func (m *recordingMetrics) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method: method, path: path, status: status})
}

func (m *recordingMetrics) RecordError(operation, errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, operation+"/"+errorType)
}

func (m *recordingMetrics) snapshot() ([]recordedRequest, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedRequest(nil), m.requests...), append([]string(nil), m.errors...)
}

func TestTransportRecordsObservability(t *testing.T) {
	t.Parallel()

	srv := testutil.NewServer(t, map[testutil.Route]http.HandlerFunc{
		{Method: "GET", Path: "/api/ipam/prefixes/42/"}: testutil.JSONHandler(t, http.StatusOK,
			map[string]any{"id": 42}),
		{Method: "GET", Path: "/api/ipam/prefixes/43/"}: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Not Found", http.StatusNotFound)
		},
	})
	t.Cleanup(srv.Close)

	logger := &recordingLogger{}
	metrics := &recordingMetrics{}
	transport := newRestyTransport(&Config{
		BaseURL:            srv.URL + "/api",
		RateLimitPerMinute: DefaultRateLimit,
		Timeout:            DefaultTimeout,
		Logger:             logger,
		Metrics:            metrics,
	})

	_, err := transport.Get(context.Background(), srv.URL+"/api/ipam/prefixes/42/", nil)
	require.NoError(t, err)
	_, err = transport.Get(context.Background(), srv.URL+"/api/ipam/prefixes/43/", nil)
	require.NoError(t, err)

	// Ids are normalized out of the recorded path.
	requests, errs := metrics.snapshot()
	require.Len(t, requests, 2)
	assert.Equal(t, recordedRequest{method: "GET", path: "/api/ipam/prefixes/:id/", status: 200}, requests[0])
	assert.Equal(t, recordedRequest{method: "GET", path: "/api/ipam/prefixes/:id/", status: 404}, requests[1])
	assert.Empty(t, errs)

	msgs := logger.messages()
	assert.Contains(t, msgs, "http request started")
	assert.Contains(t, msgs, "http request completed")
	// The 404 completes at warn level, not as a failure.
	assert.Contains(t, msgs, "http request completed with error")
	assert.NotContains(t, msgs, "http request failed")
}

func TestTransportRecordsNetworkFailures(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	metrics := &recordingMetrics{}
	transport := newRestyTransport(&Config{
		BaseURL:            "http://127.0.0.1:1/api", // nothing listens here
		RateLimitPerMinute: DefaultRateLimit,
		Timeout:            DefaultTimeout,
		Logger:             logger,
		Metrics:            metrics,
	})

	_, err := transport.Get(context.Background(), "http://127.0.0.1:1/api/x/", nil)
	require.Error(t, err)

	requests, errs := metrics.snapshot()
	assert.Empty(t, requests)
	assert.Equal(t, []string{"http_request/NetworkError"}, errs)
	assert.Contains(t, logger.messages(), "http request failed")
}

func TestTransportRateLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	transport := newRestyTransport(&Config{
		BaseURL:            "http://127.0.0.1:1/api",
		RateLimitPerMinute: DefaultRateLimit,
		Timeout:            DefaultTimeout,
		Logger:             observability.NoopLogger(),
		Metrics:            metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The limiter gives up before anything goes on the wire.
	_, err := transport.Get(ctx, "http://127.0.0.1:1/api/x/", nil)
	require.ErrorIs(t, err, context.Canceled)

	requests, errs := metrics.snapshot()
	assert.Empty(t, requests)
	assert.Empty(t, errs)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"/api/ipam/prefixes/", "/api/ipam/prefixes/"},
		{"/api/ipam/prefixes/42/", "/api/ipam/prefixes/:id/"},
		{"/api/ipam/prefixes/42", "/api/ipam/prefixes/:id"},
		{"/api/dcim/devices/7/interfaces/", "/api/dcim/devices/:id/interfaces/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.path), tt.path)
	}
}

func TestStatusErrorMatching(t *testing.T) {
	t.Parallel()

	err := statusError(http.MethodGet, "http://x/api/ipam/vrfs/1/", http.StatusNotFound)
	assert.True(t, IsNotFound(err))

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Error(), "404")

	assert.False(t, IsNotFound(statusError(http.MethodGet, "http://x/", http.StatusBadGateway)))
	assert.False(t, IsNotFound(nil))
}
