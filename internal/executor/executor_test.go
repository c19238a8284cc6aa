package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"maestro/internal/core"
)

func TestExecuteSuccess(t *testing.T) {
	step := core.Step{
		StepName: "ping",
		Request: func(ctx context.Context, vars core.Variables) any {
			return true
		},
	}
	var sent atomic.Int64
	res := Execute(context.Background(), core.RealClock{}, step, time.Second, core.NewVariables(), 7, &sent)

	if !res.Result {
		t.Errorf("expected success, got %+v", res)
	}
	if res.Exception != nil {
		t.Errorf("expected no exception, got %v", res.Exception)
	}
	if res.UserID != 7 {
		t.Errorf("got UserID %d, want 7", res.UserID)
	}
	if sent.Load() != 1 {
		t.Errorf("expected sent counter incremented to 1, got %d", sent.Load())
	}
	if res.End.Before(res.Start) {
		t.Error("expected End >= Start")
	}
}

func TestExecuteException(t *testing.T) {
	boom := errors.New("boom")
	step := core.Step{
		StepName: "fail",
		Request: func(ctx context.Context, vars core.Variables) any {
			return boom
		},
	}
	var sent atomic.Int64
	res := Execute(context.Background(), core.RealClock{}, step, time.Second, core.NewVariables(), 1, &sent)

	if res.Result {
		t.Error("expected failure result")
	}
	if !errors.Is(res.Exception, boom) {
		t.Errorf("got exception %v, want %v", res.Exception, boom)
	}
}

func TestExecutePanicIsRecovered(t *testing.T) {
	step := core.Step{
		StepName: "panics",
		Request: func(ctx context.Context, vars core.Variables) any {
			panic("kaboom")
		},
	}
	var sent atomic.Int64
	res := Execute(context.Background(), core.RealClock{}, step, time.Second, core.NewVariables(), 1, &sent)

	if res.Result {
		t.Error("expected failure result from a recovered panic")
	}
	if res.Exception == nil {
		t.Error("expected a non-nil exception describing the panic")
	}
}

func TestExecuteContextCarrierReplacesContext(t *testing.T) {
	step := core.Step{
		StepName: "login",
		Request: func(ctx context.Context, vars core.Variables) any {
			return core.Pair{V: true, C: map[string]any{"token": "abc"}}
		},
	}
	var sent atomic.Int64
	vars := core.NewVariables()
	vars.Set("stale", true)
	res := Execute(context.Background(), core.RealClock{}, step, time.Second, vars, 1, &sent)

	if !res.Result {
		t.Error("expected success")
	}
	if res.ContextAfter["token"] != "abc" {
		t.Errorf("expected replacement context, got %+v", res.ContextAfter)
	}
}

func TestExecuteAwaitsDeferredValue(t *testing.T) {
	step := core.Step{
		StepName: "deferred",
		Request: func(ctx context.Context, vars core.Variables) any {
			return deferredAwaitable{value: true}
		},
	}
	var sent atomic.Int64
	res := Execute(context.Background(), core.RealClock{}, step, time.Second, core.NewVariables(), 1, &sent)
	if !res.Result {
		t.Errorf("expected deferred value to resolve to success, got %+v", res)
	}
}

type deferredAwaitable struct{ value any }

func (d deferredAwaitable) Await(context.Context) (any, error) { return d.value, nil }

func TestExecuteTimeoutProducesSyntheticException(t *testing.T) {
	start := time.Now()
	clock := core.NewFakeClock(start)
	block := make(chan struct{})
	step := core.Step{
		StepName: "slow",
		Request: func(ctx context.Context, vars core.Variables) any {
			<-block // never resolves within the test
			return true
		},
	}
	var sent atomic.Int64
	done := make(chan core.RequestResult, 1)
	go func() {
		done <- Execute(context.Background(), clock, step, 10*time.Millisecond, core.NewVariables(), 1, &sent)
	}()

	// give the goroutine time to register its Sleep call, then fire it.
	time.Sleep(20 * time.Millisecond)
	clock.Advance(10 * time.Millisecond)

	select {
	case res := <-done:
		if res.Result {
			t.Error("expected timeout failure")
		}
		if !errors.Is(res.Exception, ErrTimedOut) {
			t.Errorf("got exception %v, want ErrTimedOut", res.Exception)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after timeout fired")
	}
	close(block)
}

func TestExecuteSleepBeforeRuns(t *testing.T) {
	var sleptFor time.Duration
	step := core.Step{
		StepName: "paced",
		SleepBefore: func(vars core.Variables) time.Duration {
			return 5 * time.Millisecond
		},
		Request: func(ctx context.Context, vars core.Variables) any {
			return true
		},
	}
	var sent atomic.Int64
	clock := core.RealClock{}
	start := time.Now()
	_ = Execute(context.Background(), clock, step, time.Second, core.NewVariables(), 1, &sent)
	sleptFor = time.Since(start)
	if sleptFor < 3*time.Millisecond {
		t.Errorf("expected SleepBefore to delay execution, elapsed %v", sleptFor)
	}
}
