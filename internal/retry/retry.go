// Package retry runs an operation under a bounded attempt budget with
// exponential backoff and a per-attempt timeout.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"

	"downie/internal/services"
)

const defaultMultiplier = 2

// Policy bounds a retried operation.
type Policy struct {
	Attempts       int
	Initial        time.Duration
	Max            time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if p.Initial <= 0 || attempt < 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = defaultMultiplier
	}
	delay := time.Duration(float64(p.Initial) * math.Pow(mult, float64(attempt-1)))
	if p.Max > 0 && (delay > p.Max || delay <= 0) {
		delay = p.Max
	}
	return delay
}

// Func is one attempt. The context carries the per-attempt deadline.
type Func func(ctx context.Context, attempt int) error

// Notify is called before sleeping between attempts.
type Notify func(attempt int, delay time.Duration, err error)

// Do runs fn until it succeeds, returns a non-retryable error, exhausts the
// attempt budget, or ctx is done. A nil retryable defaults to
// services.Retryable. An attempt that exceeds its own timeout while ctx is
// still live is reported as a transfer error and retried.
func Do(ctx context.Context, p Policy, retryable func(error) bool, notify Notify, fn Func) error {
	if retryable == nil {
		retryable = services.Retryable
	}
	attempts := max(p.Attempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runAttempt(ctx, p.AttemptTimeout, attempt, fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		if !retryable(err) || attempt == attempts {
			break
		}
		delay := p.Backoff(attempt)
		if notify != nil {
			notify(attempt, delay, err)
		}
		if sleepErr := SleepWithContext(ctx, delay); sleepErr != nil {
			return errors.Join(sleepErr, err)
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, attempt int, fn Func) error {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(attemptCtx, attempt)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTransfer) {
		return services.Wrap(services.ErrTransfer, "retry", fmt.Sprintf("attempt %d", attempt),
			fmt.Sprintf("timed out after %s", timeout), err)
	}
	return err
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err looks like a network condition worth
// retrying: timeouts, resets, refused connections, throttling, 5xx gateways.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	tokens := []string{
		"429",
		"too many requests",
		"rate limit",
		"502",
		"503",
		"504",
		"timeout",
		"timed out",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"temporary failure",
		"no route to host",
		"network is unreachable",
	}
	for _, token := range tokens {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
