/*
timeout.go - Per-call deadline for ledger and member lookups

PURPOSE:
  Bounds the latency of every remote call the engine makes. On expiry the
  whole request fails with a *TimeoutError; there is no partial result and
  no retry.

CANCELLATION:
  Racing a call against a timer only stops waiting; the call keeps running.
  withTimeout instead derives a deadline context and hands it to the call,
  so a backend that honours ctx aborts the query. The race remains as a
  backstop for backends that ignore ctx: the caller is released on time
  and the derived context is cancelled on return.

SEE ALSO:
  - store.go: Contracts that receive the derived context
  - errors.go: TimeoutError
*/
package purchase

import (
	"context"
	"errors"
	"time"
)

type callResult[T any] struct {
	value T
	err   error
}

// withTimeout runs fn with a context that expires after d.
//
// A deadline hit (whether observed by fn or by the race) yields a
// *TimeoutError for stage. Cancellation of the parent context is returned
// as-is. Any other failure from fn is returned unchanged. A non-positive d
// disables the deadline.
func withTimeout[T any](ctx context.Context, d time.Duration, stage string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if d <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(callCtx)
		done <- callResult[T]{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if ctx.Err() == nil && errors.Is(res.err, context.DeadlineExceeded) {
				return zero, &TimeoutError{Stage: stage, Deadline: d}
			}
			return zero, res.err
		}
		return res.value, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Stage: stage, Deadline: d}
	}
}
