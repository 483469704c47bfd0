package netboxapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/netboxapi/go-netboxapi/observability"
)

const (
	// DefaultRateLimit is the default request rate limit (requests per minute).
	DefaultRateLimit = 600

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// Client is the entry point to a Netbox API. It knows the base URL and
// authentication token, builds collection and item URLs, and hands out
// Mapper proxies for the application/model namespaces of the API.
type Client struct {
	baseURL   string
	transport Transport
	logger    observability.Logger
}

// Config holds configuration for the Netbox API client.
type Config struct {
	// BaseURL is the API root, e.g. "https://netbox.example.com/api".
	BaseURL string

	// Token is the Netbox API token. Optional; anonymous read-only access
	// works against Netbox instances that permit it.
	Token string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Transport overrides the HTTP layer entirely (optional). When set,
	// HTTPClient, rate limiting and TLS options are ignored.
	Transport Transport

	// InsecureSkipVerify disables TLS certificate verification (useful for
	// self-signed certs).
	InsecureSkipVerify bool

	// RateLimitPerMinute sets the request rate limit (defaults to 600).
	RateLimitPerMinute int

	// Timeout sets the HTTP client timeout.
	Timeout time.Duration

	// Logger receives structured request logs. Defaults to a no-op logger.
	Logger observability.Logger

	// Metrics receives request measurements. Defaults to a no-op recorder.
	Metrics observability.MetricsRecorder
}

// New creates a Netbox API client with default settings.
//
// Example:
//
//	client, err := netboxapi.New("https://netbox.example.com/api", "your-token")
func New(baseURL, token string) (*Client, error) {
	return NewWithConfig(&Config{
		BaseURL: baseURL,
		Token:   token,
	})
}

// NewWithConfig creates a Netbox API client with custom configuration.
// Use this to inject an HTTP client, adjust rate limits or timeouts, or
// plug in logging and metrics.
func NewWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = DefaultRateLimit
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetricsRecorder()
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newRestyTransport(cfg)
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		transport: transport,
		logger:    cfg.Logger,
	}, nil
}

// fileConfig is the YAML shape of a client configuration file.
type fileConfig struct {
	BaseURL            string `yaml:"base_url"`
	Token              string `yaml:"token"`
	Timeout            string `yaml:"timeout"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// LoadConfig reads a client configuration from a YAML file.
//
//	base_url: https://netbox.example.com/api
//	token: 0123456789abcdef
//	timeout: 45s
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if fc.BaseURL == "" {
		return nil, errors.Newf("config %s: base_url is required", path)
	}

	cfg := &Config{
		BaseURL:            fc.BaseURL,
		Token:              fc.Token,
		RateLimitPerMinute: fc.RateLimitPerMinute,
		InsecureSkipVerify: fc.InsecureSkipVerify,
	}
	if fc.Timeout != "" {
		timeout, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "config %s: invalid timeout", path)
		}
		cfg.Timeout = timeout
	}

	return cfg, nil
}

// Mapper returns a mapper addressing the collection of the given
// application namespace and model, e.g. Mapper("ipam", "prefixes").
func (c *Client) Mapper(app, model string) *Mapper {
	return &Mapper{
		client: c,
		app:    app,
		model:  model,
		fields: map[string]*field{},
	}
}

// BuildModelURL returns the collection URL for an application/model pair.
// All Netbox endpoints are slash-terminated.
func (c *Client) BuildModelURL(app, model string) string {
	return c.baseURL + "/" + app + "/" + model + "/"
}

// BuildItemURL returns the URL of a single object within a collection.
func (c *Client) BuildItemURL(app, model, id string) string {
	return c.BuildModelURL(app, model) + id + "/"
}
