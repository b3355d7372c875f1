// Package upstream applies the shared call policy for external services:
// a minimum delay between consecutive calls, a timeout per attempt and a
// bounded number of retries with a constant pause.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stopfill/pkg/metrics"
)

// ErrExhausted is returned when every attempt of a call failed.
var ErrExhausted = errors.New("retries exhausted")

// Policy configures a Caller.
type Policy struct {
	Timeout  time.Duration // per attempt
	Attempts int           // total attempts, at least 1
	Backoff  time.Duration // pause between attempts
	MinDelay time.Duration // minimum gap between consecutive calls
}

// DefaultPolicy matches the public OSRM demo limits: 15 s per attempt,
// three attempts two seconds apart, one call every 300 ms.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:  15 * time.Second,
		Attempts: 3,
		Backoff:  2 * time.Second,
		MinDelay: 300 * time.Millisecond,
	}
}

// Caller runs operations under a Policy. One Caller shares its limiter
// between every client built on it, so the minimum delay holds across
// services. Calls are expected to be sequential.
type Caller struct {
	policy  Policy
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCaller creates a Caller. m may be nil.
func NewCaller(policy Policy, logger *zap.Logger, m *metrics.Metrics) *Caller {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	limit := rate.Inf
	if policy.MinDelay > 0 {
		limit = rate.Every(policy.MinDelay)
	}
	return &Caller{
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: m,
	}
}

// Policy returns the policy the caller was built with.
func (c *Caller) Policy() Policy { return c.policy }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// unchanged, without ErrExhausted.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, or the attempts
// run out. Each attempt waits for the limiter and gets its own timeout
// derived from ctx. service names the endpoint in logs and metrics.
func (c *Caller) Do(ctx context.Context, service string, op func(ctx context.Context) error) error {
	var (
		attempt   int
		permanent bool
	)

	attemptFn := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			permanent = true
			return backoff.Permanent(err)
		}

		actx := ctx
		if c.policy.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
			defer cancel()
		}

		err := op(actx)
		c.metrics.Attempt(service, err)

		var pe *permanentError
		if errors.As(err, &pe) {
			permanent = true
			return backoff.Permanent(pe.err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.policy.Backoff), uint64(c.policy.Attempts-1)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("upstream attempt failed",
			zap.String("service", service),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.Attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(attemptFn, b, notify)
	switch {
	case err == nil:
		return nil
	case permanent:
		return fmt.Errorf("%s: %w", service, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", service, ctx.Err())
	default:
		return fmt.Errorf("%s: %w after %d attempts: %w", service, ErrExhausted, attempt, err)
	}
}
