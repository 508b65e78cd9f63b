package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned when a bounded poll exhausts its maximum
// elapsed time without the condition becoming true.
var ErrPollTimeout = errors.New("poll timed out")

// Condition is re-evaluated on every poll tick. Errors are treated as
// transient: the poll keeps going and the last error is attached to the
// timeout if the condition never holds.
type Condition func(ctx context.Context) (done bool, err error)

// PollUntil is the single bounded-wait primitive used by every wait site
// (workload convergence, pod readiness, endpoint readiness). It re-checks
// the condition at a fixed interval until it holds or timeout elapses.
// No wait in cachectl blocks forever.
func PollUntil(ctx context.Context, interval, timeout time.Duration, cond Condition) (time.Duration, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	var lastErr error
	for {
		done, err := cond(ctx)
		if err != nil {
			lastErr = err
		} else if done {
			return time.Since(start), nil
		}

		if time.Now().After(deadline) {
			if lastErr != nil {
				return time.Since(start), fmt.Errorf("%w after %s (last error: %v)", ErrPollTimeout, timeout, lastErr)
			}
			return time.Since(start), fmt.Errorf("%w after %s", ErrPollTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-time.After(interval):
		}
	}
}
