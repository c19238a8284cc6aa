// Package executor runs a single step against the timeout and
// deferred-value rules every driver relies on.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"maestro/internal/core"
)

// ErrTimedOut is wrapped into the synthetic exception recorded when a
// step's timeout wins the race against its response.
var ErrTimedOut = errors.New("request timed out")

// Execute runs step once: it increments sent, applies SleepBefore,
// invokes Request, awaits a deferred response if one came back, races the
// result against timeout, and normalizes whatever wins into exactly one
// RequestResult. It never panics back to the caller — a panic inside
// Request is recovered and reported as the step's exception.
func Execute(ctx context.Context, clock core.Clock, step core.Step, timeout time.Duration, vars core.Variables, userID int, sent *atomic.Int64) core.RequestResult {
	sent.Add(1)

	if step.SleepBefore != nil {
		if d := step.SleepBefore(vars); d > 0 {
			<-clock.Sleep(ctx, d)
		}
	}

	start := clock.Now()
	before := vars.Snapshot()
	stepCtx := core.ContextWithUserID(ctx, userID)

	type outcome struct {
		response any
		err      error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		response, err := invoke(stepCtx, step, vars)
		resultCh <- outcome{response: response, err: err}
	}()

	var timeoutCh <-chan struct{}
	if timeout > 0 {
		timeoutCh = clock.Sleep(ctx, timeout)
	}

	select {
	case o := <-resultCh:
		return finish(step, userID, start, clock.Now(), o.response, o.err, before)
	case <-timeoutCh:
		// The invoking goroutine is orphaned: its eventual send into
		// resultCh is buffered and simply never read.
		return core.RequestResult{
			Name:          step.Name(),
			UserID:        userID,
			Start:         start,
			End:           clock.Now(),
			Result:        false,
			ContextBefore: before,
			ContextAfter:  before,
			Exception:     fmt.Errorf("%w after %s", ErrTimedOut, timeout),
		}
	}
}

// invoke calls step.Request, recovering any panic into err, then resolves
// a deferred (Awaitable) response against ctx.
func invoke(ctx context.Context, step core.Step, vars core.Variables) (response any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	raw := step.Request(ctx, vars)
	awaitable := core.ToAwaitable(raw, nil)
	value, awaitErr := awaitable.Await(ctx)
	return value, awaitErr
}

func finish(step core.Step, userID int, start, end time.Time, response any, invokeErr error, before map[string]any) core.RequestResult {
	if invokeErr != nil {
		return core.RequestResult{
			Name:          step.Name(),
			UserID:        userID,
			Start:         start,
			End:           end,
			Result:        false,
			ContextBefore: before,
			ContextAfter:  before,
			Exception:     invokeErr,
		}
	}

	out := core.Normalize(response, before)
	return core.RequestResult{
		Name:          step.Name(),
		UserID:        userID,
		Start:         start,
		End:           end,
		Result:        out.Success,
		ContextBefore: before,
		ContextAfter:  out.Context,
		Exception:     out.Err,
	}
}
