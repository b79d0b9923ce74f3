// Package transport assembles NCBI E-utilities URLs, injects credential
// parameters, dispatches GET/POST, classifies the response, and wraps every
// call through the rate limiter, retry driver, and an optional circuit
// breaker.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"pubmedkit/internal/log"
	"pubmedkit/pmerror"
	"pubmedkit/ratelimit"
	"pubmedkit/retry"
)

// Credentials are appended to every request when configured.
type Credentials struct {
	APIKey string
	Email  string
	Tool   string
}

// Executor is the request-execution pipeline (C6).
type Executor struct {
	BaseURL    string
	HTTPClient *http.Client
	Creds      Credentials
	UserAgent  string
	Limiter    *ratelimit.Limiter
	Retry      *retry.Driver
	Breaker    *gobreaker.CircuitBreaker
	Logger     *zap.Logger
}

// NewExecutor builds an Executor. breaker may be nil to disable circuit
// breaking.
func NewExecutor(baseURL string, timeout time.Duration, creds Credentials, userAgent string, limiter *ratelimit.Limiter, retryDriver *retry.Driver, breaker *gobreaker.CircuitBreaker, logger *zap.Logger) *Executor {
	return &Executor{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Creds:      creds,
		UserAgent:  userAgent,
		Limiter:    limiter,
		Retry:      retryDriver,
		Breaker:    breaker,
		Logger:     log.OrNop(logger),
	}
}

// NewBreaker builds a gobreaker.CircuitBreaker tuned for an NCBI endpoint:
// it opens after 5 consecutive failures and probes again after 30s.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

func (e *Executor) buildURL(endpoint string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if e.Creds.APIKey != "" {
		params.Set("api_key", e.Creds.APIKey)
	}
	if e.Creds.Email != "" {
		params.Set("email", e.Creds.Email)
	}
	if e.Creds.Tool != "" {
		params.Set("tool", e.Creds.Tool)
	}
	u := e.BaseURL
	if endpoint != "" {
		u = e.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	if len(params) == 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + params.Encode()
}

// Get issues a GET against endpoint with params, wrapped in rate limiting,
// retry, and (if configured) the circuit breaker.
func (e *Executor) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := e.buildURL(endpoint, params)
	return e.doWithResilience(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		if e.UserAgent != "" {
			req.Header.Set("User-Agent", e.UserAgent)
		}
		return e.HTTPClient.Do(req)
	})
}

// GetRawQuery issues a GET against endpoint with a caller-assembled,
// already-escaped query string, appending only credential parameters via the
// normal encoder. ECitMatch's bdata parameter relies on literal "%0D" and "+"
// bytes reaching NCBI unescaped a second time, which url.Values.Encode would
// otherwise double-encode.
func (e *Executor) GetRawQuery(ctx context.Context, endpoint, rawQuery string) ([]byte, error) {
	creds := url.Values{}
	if e.Creds.APIKey != "" {
		creds.Set("api_key", e.Creds.APIKey)
	}
	if e.Creds.Email != "" {
		creds.Set("email", e.Creds.Email)
	}
	if e.Creds.Tool != "" {
		creds.Set("tool", e.Creds.Tool)
	}
	reqURL := e.BaseURL + "/" + strings.TrimLeft(endpoint, "/") + "?" + rawQuery
	if encoded := creds.Encode(); encoded != "" {
		reqURL += "&" + encoded
	}
	return e.doWithResilience(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		if e.UserAgent != "" {
			req.Header.Set("User-Agent", e.UserAgent)
		}
		return e.HTTPClient.Do(req)
	})
}

// Post issues an EPost-style form POST carrying credentials, the ID list,
// and an optional WebEnv.
func (e *Executor) Post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	if e.Creds.APIKey != "" {
		form.Set("api_key", e.Creds.APIKey)
	}
	if e.Creds.Email != "" {
		form.Set("email", e.Creds.Email)
	}
	if e.Creds.Tool != "" {
		form.Set("tool", e.Creds.Tool)
	}
	reqURL := e.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	body := form.Encode()
	return e.doWithResilience(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if e.UserAgent != "" {
			req.Header.Set("User-Agent", e.UserAgent)
		}
		return e.HTTPClient.Do(req)
	})
}

func (e *Executor) doWithResilience(ctx context.Context, send func(ctx context.Context) (*http.Response, error)) ([]byte, error) {
	if e.Limiter != nil {
		if err := e.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}

	var body []byte
	op := func(ctx context.Context) error {
		do := func() error {
			resp, err := send(ctx)
			if err != nil {
				re := classifyTransportErr(err)
				return re
			}
			defer resp.Body.Close()
			b, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return &pmerror.RequestError{Message: readErr.Error(), Cause: readErr}
			}
			if apiErr := classifyStatus(resp.StatusCode, b); apiErr != nil {
				return apiErr
			}
			body = b
			return nil
		}
		if e.Breaker == nil {
			return do()
		}
		_, err := e.Breaker.Execute(func() (interface{}, error) {
			return nil, do()
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// Fail fast with a retryable error so the retry driver backs off
			// instead of hammering an endpoint the breaker already declared
			// down.
			return &pmerror.ApiError{Status: 503, Message: "circuit breaker open: " + err.Error()}
		}
		return err
	}

	runner := op
	if e.Retry != nil {
		runner = func(ctx context.Context) error {
			return e.Retry.Do(ctx, pmerror.Retryable, op)
		}
	}
	if err := runner(ctx); err != nil {
		return nil, err
	}
	return body, nil
}

func classifyTransportErr(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	return &pmerror.RequestError{
		Message:   msg,
		IsTimeout: strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"),
		IsConnect: strings.Contains(lower, "connection") || strings.Contains(lower, "dial"),
		Cause:     err,
	}
}

func classifyStatus(status int, body []byte) *pmerror.ApiError {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := fmt.Sprintf("unexpected status %d", status)
	if len(body) > 0 && len(body) < 2048 {
		msg = string(body)
	}
	return &pmerror.ApiError{Status: status, Message: msg}
}
