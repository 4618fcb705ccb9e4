// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package retry wraps an operation with bounded, pure exponential backoff.
//
// The policy retries whatever the operation returns; callers must only wrap
// idempotent calls. No jitter is applied: the wait before retry i (0-based)
// is exactly BaseDelay * 2^i.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 300 * time.Millisecond
)

// Policy configures Do.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first call. The
	// operation runs at most MaxRetries+1 times. Negative values mean zero.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// RetryIf decides whether an error is worth another attempt. Nil retries
	// every error.
	RetryIf func(error) bool
	// OnRetry is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
	// Sleep waits for d or until ctx ends. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the policy with two retries and a 300ms base delay.
func Default() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay * time.Duration(1<<attempt)
}

// TotalDelay is the summed wait when every attempt fails.
func (p Policy) TotalDelay() time.Duration {
	var total time.Duration
	for i := 0; i < p.maxRetries(); i++ {
		total += p.Delay(i)
	}
	return total
}

func (p Policy) maxRetries() int {
	if p.MaxRetries < 0 {
		return 0
	}
	return p.MaxRetries
}

// Do runs op until it succeeds, the retry budget is spent, RetryIf rejects
// the error, or ctx ends during a wait. The last error is returned as is;
// when the wait is interrupted it is joined with the context error.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.maxRetries() || (p.RetryIf != nil && !p.RetryIf(err)) {
			return zero, err
		}

		wait := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return zero, errors.Join(err, serr)
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
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
