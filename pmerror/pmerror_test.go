package pmerror

import "testing"

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"500", &ApiError{Status: 500, Message: "server error"}, true},
		{"429", &ApiError{Status: 429, Message: "too many requests"}, true},
		{"404", &ApiError{Status: 404, Message: "not found"}, false},
		{"timeout message", &ApiError{Status: 200, Message: "Connection timeout occurred"}, true},
		{"rate limit", &RateLimitExceeded{}, true},
		{"request timeout", &RequestError{IsTimeout: true}, true},
		{"request connect", &RequestError{IsConnect: true}, true},
		{"request other", &RequestError{Message: "weird"}, false},
		{"article not found", &ArticleNotFound{Pmid: "1"}, false},
		{"invalid query", &InvalidQuery{Message: "empty"}, false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Errorf("%s: Retryable() = %v, want %v", c.name, got, c.want)
		}
	}
}
