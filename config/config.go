// Package config provides ClientConfig, the enumerated construction options
// for a pubmed.Client, plus an opt-in loader that reads them from NCBI_*
// environment variables.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"pubmedkit/retry"
)

// defaultRate is the unauthenticated NCBI rate limit; apiKeyRate is the rate
// NCBI grants callers that present an api_key.
const (
	defaultRate = 3.0
	apiKeyRate  = 10.0

	// DefaultBaseURL is the production E-utilities base.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	// DefaultOABaseURL is the PMC OA subset service base.
	DefaultOABaseURL = "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi"
)

// ClientConfig is the enumerated option set for constructing a
// pubmed.Client. RateLimit, when positive, overrides the computed effective
// rate; otherwise the effective rate is 10 req/s with an APIKey configured,
// else 3 req/s.
type ClientConfig struct {
	APIKey         string
	Email          string
	Tool           string
	Timeout        time.Duration
	RateLimit      float64
	BaseURL        string
	OABaseURL      string
	UserAgent      string
	RetryConfig    retry.Config
	CircuitBreaker bool
	Logger         *zap.Logger
}

// DefaultConfig returns a ClientConfig with no credentials, the public
// production base URL, a 30s per-request timeout, and the default retry
// schedule.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		BaseURL:     DefaultBaseURL,
		OABaseURL:   DefaultOABaseURL,
		Timeout:     30 * time.Second,
		RetryConfig: retry.DefaultConfig(),
	}
}

// EffectiveRate returns RateLimit if set, else apiKeyRate with an APIKey
// configured, else defaultRate.
func (c ClientConfig) EffectiveRate() float64 {
	if c.RateLimit > 0 {
		return c.RateLimit
	}
	if c.APIKey != "" {
		return apiKeyRate
	}
	return defaultRate
}

// EffectiveUserAgent returns UserAgent if set, else the NCBI-recommended
// identification string built from Email.
func (c ClientConfig) EffectiveUserAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	if c.Email != "" {
		return "pubmedkit/1 (+mailto:" + c.Email + ")"
	}
	return "pubmedkit/1"
}

// Option configures a ClientConfig during construction, mirroring the
// functional-options idiom used for the pack's own NCBI client constructors.
type Option func(*ClientConfig)

// WithAPIKey sets the NCBI api_key credential.
func WithAPIKey(key string) Option { return func(c *ClientConfig) { c.APIKey = key } }

// WithEmail sets the identification email parameter.
func WithEmail(email string) Option { return func(c *ClientConfig) { c.Email = email } }

// WithTool sets the identification tool parameter.
func WithTool(tool string) Option { return func(c *ClientConfig) { c.Tool = tool } }

// WithTimeout overrides the per-request wall-clock timeout.
func WithTimeout(d time.Duration) Option { return func(c *ClientConfig) { c.Timeout = d } }

// WithRateLimit overrides the computed effective rate.
func WithRateLimit(r float64) Option { return func(c *ClientConfig) { c.RateLimit = r } }

// WithBaseURL overrides the E-utilities base URL, for tests.
func WithBaseURL(url string) Option { return func(c *ClientConfig) { c.BaseURL = url } }

// WithCircuitBreaker enables the circuit breaker around the request
// executor: after a run of consecutive failures, calls fail fast until the
// endpoint recovers.
func WithCircuitBreaker() Option { return func(c *ClientConfig) { c.CircuitBreaker = true } }

// WithLogger attaches a *zap.Logger to every component the client owns.
func WithLogger(logger *zap.Logger) Option { return func(c *ClientConfig) { c.Logger = logger } }

// New builds a ClientConfig starting from DefaultConfig and applying opts in
// order.
func New(opts ...Option) ClientConfig {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// envConfig is the envconfig-tagged struct behind LoadFromEnv, scoped to
// the NCBI_* variables this client cares about.
type envConfig struct {
	APIKey    string  `envconfig:"NCBI_API_KEY"`
	Email     string  `envconfig:"NCBI_EMAIL"`
	Tool      string  `envconfig:"NCBI_TOOL" default:"pubmedkit"`
	BaseURL   string  `envconfig:"NCBI_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	RateLimit float64 `envconfig:"NCBI_RATE_LIMIT"`
	TimeoutMS int     `envconfig:"NCBI_TIMEOUT_MS" default:"30000"`
}

// LoadFromEnv builds a ClientConfig from NCBI_API_KEY, NCBI_EMAIL, NCBI_TOOL,
// NCBI_BASE_URL, NCBI_RATE_LIMIT, and NCBI_TIMEOUT_MS, loading a .env file
// first when one is present.
func LoadFromEnv() (ClientConfig, error) {
	_ = godotenv.Load()
	var e envConfig
	if err := envconfig.Process("", &e); err != nil {
		return ClientConfig{}, err
	}
	cfg := DefaultConfig()
	cfg.APIKey = e.APIKey
	cfg.Email = e.Email
	cfg.Tool = e.Tool
	cfg.BaseURL = e.BaseURL
	cfg.RateLimit = e.RateLimit
	cfg.Timeout = time.Duration(e.TimeoutMS) * time.Millisecond
	return cfg, nil
}
