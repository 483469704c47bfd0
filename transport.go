package netboxapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/netboxapi/go-netboxapi/observability"
)

// Response is the result of one HTTP exchange with the API. The status
// code is carried as data, never as an error: deciding what a non-2xx
// status means is up to the mapper (a 404 on a post-creation verification
// GET, for example, is an expected case, not a failure).
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the response body into v. Numbers are decoded as
// json.Number so object ids survive the round trip without float
// conversion.
func (r *Response) DecodeJSON(v any) error {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

// Transport is the HTTP seam of the client. Implementations return an
// error only for network-level failures; HTTP statuses are reported
// through the Response.
type Transport interface {
	Get(ctx context.Context, target string, query url.Values) (*Response, error)
	Post(ctx context.Context, target string, body any) (*Response, error)
	Put(ctx context.Context, target string, body any) (*Response, error)
	Delete(ctx context.Context, target string) (*Response, error)
}

// restyTransport is the default Transport, built on resty with a token
// bucket rate limiter in front of every request.
type restyTransport struct {
	rc      *resty.Client
	limiter *rate.Limiter
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

func newRestyTransport(cfg *Config) *restyTransport {
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New().SetTimeout(cfg.Timeout)
		if cfg.InsecureSkipVerify {
			rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // user-configurable
		}
	}

	rc.SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rc.SetHeader("Authorization", "Token "+cfg.Token)
	}

	perMinute := cfg.RateLimitPerMinute
	return &restyTransport{
		rc:      rc,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

func (t *restyTransport) Get(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	return t.do(ctx, http.MethodGet, rawURL, query, nil)
}

func (t *restyTransport) Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	return t.do(ctx, http.MethodPost, rawURL, nil, body)
}

func (t *restyTransport) Put(ctx context.Context, rawURL string, body any) (*Response, error) {
	return t.do(ctx, http.MethodPut, rawURL, nil, body)
}

func (t *restyTransport) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return t.do(ctx, http.MethodDelete, rawURL, nil, nil)
}

func (t *restyTransport) do(ctx context.Context, method, rawURL string, query url.Values, body any) (*Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter wait failed")
	}

	req := t.rc.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}

	t.logger.Debug("http request started",
		observability.Field{Key: "method", Value: method},
		observability.Field{Key: "url", Value: rawURL},
	)

	start := time.Now()
	resp, err := req.Execute(method, rawURL)
	duration := time.Since(start)

	if err != nil {
		t.logger.Error("http request failed",
			observability.Field{Key: "method", Value: method},
			observability.Field{Key: "url", Value: rawURL},
			observability.Field{Key: "duration", Value: duration},
			observability.Field{Key: "error", Value: err.Error()},
		)
		t.metrics.RecordError("http_request", "NetworkError")
		return nil, errors.Wrapf(err, "%s %s", method, rawURL)
	}

	fields := []observability.Field{
		{Key: "method", Value: method},
		{Key: "url", Value: rawURL},
		{Key: "status", Value: resp.StatusCode()},
		{Key: "duration", Value: duration},
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		t.logger.Warn("http request completed with error", fields...)
	} else {
		t.logger.Debug("http request completed", fields...)
	}
	if u, perr := url.Parse(rawURL); perr == nil {
		t.metrics.RecordHTTPRequest(method, normalizePath(u.Path), resp.StatusCode(), duration)
	}

	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// numericSegmentPattern matches numeric object ids in URL paths.
var numericSegmentPattern = regexp.MustCompile(`/\d+(/|$)`)

// normalizePath replaces numeric path segments with a placeholder so that
// per-object URLs do not blow up metric cardinality:
// /api/ipam/prefixes/42/ becomes /api/ipam/prefixes/:id/.
func normalizePath(path string) string {
	return numericSegmentPattern.ReplaceAllString(path, "/:id$1")
}
