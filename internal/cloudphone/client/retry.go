package client

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"time"

	"cloudphone/internal/cloudphone/cloudphoneerr"
	"cloudphone/internal/cloudphone/metrics"
)

// RetryPolicy mirrors the teacher's retryConfig (internal/bmc/retry.go),
// generalized from raw HTTP status codes to the provider's {code,msg}
// envelope: a call is retried when it fails with a transport error or a
// retryable *cloudphoneerr.Error, using exponential backoff with jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterFrac  float64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.JitterFrac <= 0 {
		p.JitterFrac = 0.3
	}
	return p
}

// doWithRetry runs fn, retrying transient failures with exponential
// backoff and jitter, grounded on bmc.Service.doWithRetry.
func (c *Client) doWithRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	cfg := c.retry
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		start := time.Now()
		err := fn(ctx)
		dur := time.Since(start)

		code := 0
		var cpErr *cloudphoneerr.Error
		if errors.As(err, &cpErr) {
			code = cpErr.Code
		}
		metrics.ObserveProviderRequest(op, code, dur)

		if err == nil {
			return nil
		}
		if !isRetryableCallErr(err) {
			return err
		}

		lastErr = err
		if attempt < cfg.MaxAttempts {
			metrics.IncProviderRetry(op)
			sleep := backoffWithJitter(cfg, attempt)
			slog.Debug("provider call retry", "op", op, "attempt", attempt, "sleep", sleep, "err", err)
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func backoffWithJitter(cfg RetryPolicy, attempt int) time.Duration {
	exp := attempt - 1
	if exp > 10 {
		exp = 10
	}
	backoff := cfg.BaseDelay * (1 << exp)
	if backoff > cfg.MaxDelay {
		backoff = cfg.MaxDelay
	}
	jitter := time.Duration(rand.Float64() * cfg.JitterFrac * float64(backoff) * 2)
	return backoff - time.Duration(cfg.JitterFrac*float64(backoff)) + jitter
}

// isRetryableCallErr decides whether a client-level call (transport or
// provider-logical) should be retried by the HTTP layer itself. This is
// distinct from cloudphoneerr.IsRetryable, which governs the executor's
// per-state retry budget (spec §4.7); this one governs transient
// in-flight HTTP retries (e.g., a single dropped connection), so it
// additionally retries plain net.Error timeouts that never made it into
// a *cloudphoneerr.Error.
func isRetryableCallErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return cloudphoneerr.IsRetryable(err)
}
