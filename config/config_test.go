package config

import "testing"

func TestEffectiveRate(t *testing.T) {
	cases := []struct {
		name string
		cfg  ClientConfig
		want float64
	}{
		{"no credentials", ClientConfig{}, defaultRate},
		{"api key", ClientConfig{APIKey: "k"}, apiKeyRate},
		{"explicit override wins", ClientConfig{APIKey: "k", RateLimit: 5}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.EffectiveRate(); got != tc.want {
				t.Fatalf("EffectiveRate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEffectiveUserAgent(t *testing.T) {
	cfg := New(WithEmail("a@b.com"))
	if got, want := cfg.EffectiveUserAgent(), "pubmedkit/1 (+mailto:a@b.com)"; got != want {
		t.Fatalf("EffectiveUserAgent() = %q, want %q", got, want)
	}
	if got := (ClientConfig{}).EffectiveUserAgent(); got != "pubmedkit/1" {
		t.Fatalf("EffectiveUserAgent() with no email = %q, want pubmedkit/1", got)
	}
}

func TestNewAppliesOptions(t *testing.T) {
	cfg := New(WithAPIKey("key"), WithEmail("e@x.com"), WithTool("t"), WithBaseURL("http://example.test"))
	if cfg.APIKey != "key" || cfg.Email != "e@x.com" || cfg.Tool != "t" || cfg.BaseURL != "http://example.test" {
		t.Fatalf("New() did not apply all options: %+v", cfg)
	}
}
