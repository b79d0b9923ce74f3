// Package pmerror defines the closed set of error variants this client can
// raise, and the single retry classifier every retrying component consults.
package pmerror

import (
	"fmt"
	"strings"
	"time"
)

// RequestError is a transport-level failure: connect, DNS, TLS, timeout.
type RequestError struct {
	Message    string
	IsTimeout  bool
	IsConnect  bool
	Suggestion string
	Cause      error
}

func (e *RequestError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("request error: %s (%s)", e.Message, e.Suggestion)
	}
	return fmt.Sprintf("request error: %s", e.Message)
}

func (e *RequestError) Unwrap() error { return e.Cause }

// ApiError is a non-success HTTP status, or an in-band NCBI error embedded in
// an otherwise-200 response.
type ApiError struct {
	Status     int
	Message    string
	RetryAfter *time.Duration
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

// RateLimitExceeded is surfaced after the retry budget is exhausted on a 429.
type RateLimitExceeded struct{}

func (e *RateLimitExceeded) Error() string {
	return "rate limit exceeded (wait and retry)"
}

// JSONError wraps a JSON payload that could not be decoded as expected.
type JSONError struct {
	Message string
	Cause   error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("json error: %s", e.Message)
}

func (e *JSONError) Unwrap() error { return e.Cause }

// XMLError wraps an XML payload that could not be decoded as expected.
type XMLError struct {
	Message string
	Cause   error
}

func (e *XMLError) Error() string {
	return fmt.Sprintf("xml error: %s", e.Message)
}

func (e *XMLError) Unwrap() error { return e.Cause }

// ArticleNotFound means EFetch or ESummary returned no matching record.
type ArticleNotFound struct {
	Pmid string
}

func (e *ArticleNotFound) Error() string {
	return fmt.Sprintf("article not found: pmid=%s (verify the PMID exists in PubMed)", e.Pmid)
}

// PmcNotAvailable means the caller asked for full text PMC does not have.
type PmcNotAvailable struct {
	Pmid  string
	Pmcid string
}

func (e *PmcNotAvailable) Error() string {
	if e.Pmcid != "" {
		return fmt.Sprintf("pmc not available: pmcid=%s", e.Pmcid)
	}
	return fmt.Sprintf("pmc not available: pmid=%s", e.Pmid)
}

// InvalidPmid means an identifier did not parse.
type InvalidPmid struct {
	Pmid  string
	Cause error
}

func (e *InvalidPmid) Error() string {
	return fmt.Sprintf("invalid pmid: %s", e.Pmid)
}

func (e *InvalidPmid) Unwrap() error { return e.Cause }

// InvalidPmcid means a PMC identifier did not parse.
type InvalidPmcid struct {
	Pmcid string
	Cause error
}

func (e *InvalidPmcid) Error() string {
	return fmt.Sprintf("invalid pmcid: %s", e.Pmcid)
}

func (e *InvalidPmcid) Unwrap() error { return e.Cause }

// InvalidQuery means the query validator rejected a query string.
type InvalidQuery struct {
	Message string
}

func (e *InvalidQuery) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Message)
}

// SearchLimitExceeded means the caller asked for more than the maximum
// number of results in a single search.
type SearchLimitExceeded struct {
	Requested int
	Maximum   int
}

func (e *SearchLimitExceeded) Error() string {
	return fmt.Sprintf("search limit exceeded: requested=%d maximum=%d", e.Requested, e.Maximum)
}

// HistorySessionError means a WebEnv session expired or was rejected.
type HistorySessionError struct {
	Message string
}

func (e *HistorySessionError) Error() string {
	return fmt.Sprintf("history session error: %s", e.Message)
}

// WebEnvNotAvailable means upstream did not return a session when one was
// required.
type WebEnvNotAvailable struct{}

func (e *WebEnvNotAvailable) Error() string {
	return "webenv not available from upstream"
}

// Retryable is the single retry classifier every retrying component
// consults: transport timeouts and connection failures, HTTP 5xx and 429,
// and NCBI's transient textual errors retry; everything else propagates.
func Retryable(err error) bool {
	switch e := err.(type) {
	case *RequestError:
		return e.IsTimeout || e.IsConnect
	case *ApiError:
		if e.Status == 429 || (e.Status >= 500 && e.Status < 600) {
			return true
		}
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "temporarily unavailable") ||
			strings.Contains(msg, "timeout") ||
			strings.Contains(msg, "connection")
	case *RateLimitExceeded:
		return true
	default:
		return false
	}
}
