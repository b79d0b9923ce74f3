// Package retry drives exponential backoff with jitter over a
// retryable-error predicate, re-acquiring a rate-limit token between
// attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"pubmedkit/internal/log"
)

// Config controls the backoff schedule. Delay for attempt i is
// min(Base*Factor^i, MaxDelay) randomized by +/- Jitter.
type Config struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	MaxDelay    time.Duration
	Jitter      float64
}

// DefaultConfig mirrors NCBI's documented tolerances: a handful of attempts,
// a short base delay, and enough jitter to avoid synchronized retries across
// concurrent callers.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Base:        500 * time.Millisecond,
		Factor:      2.0,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// TokenAcquirer re-acquires a rate-limit token before each retry attempt.
// transport.Executor's limiter satisfies this.
type TokenAcquirer interface {
	Acquire(ctx context.Context) error
}

// Driver executes operations under a retry policy.
type Driver struct {
	cfg     Config
	limiter TokenAcquirer
	logger  *zap.Logger
}

// New builds a Driver. limiter may be nil if no token should be re-acquired
// between attempts (the caller's executor already acquired once up front).
func New(cfg Config, limiter TokenAcquirer, logger *zap.Logger) *Driver {
	return &Driver{cfg: cfg, limiter: limiter, logger: log.OrNop(logger)}
}

// Retryable reports whether err should be retried. Injected so callers can
// plug in pmerror.Retryable without this package importing pmerror.
type Retryable func(error) bool

// Do runs op, retrying while retryable(err) is true, up to MaxAttempts total
// attempts. It never retries after a nil error. All errors other than those
// retryable propagate immediately on first occurrence.
func (d *Driver) Do(ctx context.Context, retryable Retryable, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.Base
	b.Multiplier = d.cfg.Factor
	b.MaxInterval = d.cfg.MaxDelay
	b.RandomizationFactor = d.cfg.Jitter
	b.MaxElapsedTime = 0 // bounded by MaxAttempts, not elapsed wall clock
	bctx := backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 && d.limiter != nil {
			if err := d.limiter.Acquire(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= d.cfg.MaxAttempts || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		d.logger.Warn("retrying after error",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, bctx, notify); err != nil {
		if pe, ok := err.(*backoff.PermanentError); ok {
			return pe.Err
		}
		return err
	}
	return nil
}
