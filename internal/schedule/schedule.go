// Package schedule runs cancellable periodic tasks.
package schedule

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Poll when every attempt ran without the
// condition being met.
var ErrExhausted = errors.New("poll attempts exhausted")

// Poll calls fn immediately and then every interval until fn reports done,
// maxAttempts calls have been made, or ctx is done. maxAttempts <= 0 means no
// limit. It returns the number of calls made and nil, ErrExhausted or the
// context error.
//
// The interval is measured from the end of one call to the start of the next,
// so a slow fn never causes calls to overlap or bunch up.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, fn func(ctx context.Context, attempt int) bool) (int, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-timer.C:
		}

		attempts++
		if fn(ctx, attempts) {
			return attempts, nil
		}
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		if maxAttempts > 0 && attempts >= maxAttempts {
			return attempts, ErrExhausted
		}
		timer.Reset(interval)
	}
}

// Every calls fn immediately and then every interval until ctx is done or fn
// returns an error. It returns fn's error, or nil once ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context) error) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := fn(ctx); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		timer.Reset(interval)
	}
}
