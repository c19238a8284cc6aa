// Package scenariorunner executes one full pass of a scenario for one
// virtual user: the step-source walk, hook application, and the
// termination checks that decide when a pass stops early.
package scenariorunner

import (
	"context"
	"sync/atomic"
	"time"

	"maestro/internal/core"
	"maestro/internal/executor"
	"maestro/internal/ratelimit"
	"maestro/internal/runner"
)

// Deps bundles the collaborators a run needs beyond the Scenario and
// user ID themselves.
type Deps struct {
	Clock     core.Clock
	Timeout   time.Duration
	ErrorSink func(scenarioName string, userID int, stepName string, err error)
	Runner    runner.Runner
	Sent      *atomic.Int64
	ForceStop <-chan struct{}
	Start     time.Time

	// Limiter, when set, caps the process-wide rate at which new scenario
	// runs start, independent of any per-scenario Rate Driver. It is the
	// global safety valve from orchestrator.Options.GlobalRateLimit.
	Limiter *ratelimit.RateLimiter
}

// stepSource is the (remaining-steps, step-fn) pair the state walk
// consumes; exhausting remaining falls through to consulting fn until it
// signals termination.
type stepSource struct {
	remaining []core.Step
	fn        core.StepFn
}

// next returns the step to run next, the context to run it with, the
// advanced source, and whether a step was produced at all.
func (s stepSource) next(ctx context.Context, vars core.Variables) (core.Step, stepSource, bool) {
	if len(s.remaining) > 0 {
		return s.remaining[0], stepSource{remaining: s.remaining[1:], fn: s.fn}, true
	}
	if s.fn == nil {
		return core.Step{}, s, false
	}
	step, next, ok := s.fn(ctx, vars)
	if !ok {
		return core.Step{}, stepSource{fn: s.fn}, false
	}
	if next != nil {
		for k, v := range next {
			vars.Set(k, v)
		}
	}
	return step, stepSource{fn: s.fn}, true
}

// Run executes scn once for userID, walking its step source until
// termination and returning the accumulated ScenarioResult.
func Run(ctx context.Context, deps Deps, scn *core.Scenario, userID int) core.ScenarioResult {
	if deps.Limiter != nil {
		_ = deps.Limiter.Wait(ctx)
	}

	vars := core.VariablesFromMap(core.MergeMaps(scn.Context))

	if scn.PreHook != nil {
		if replaced, err := scn.PreHook(ctx, vars); err == nil && replaced != nil {
			vars = core.VariablesFromMap(replaced.Snapshot())
		}
	}

	src := stepSource{remaining: scn.Steps, fn: scn.StepFn}
	result := core.ScenarioResult{Name: scn.Name, UserID: userID}

	for {
		step, nextSrc, ok := src.next(ctx, vars)
		if !ok {
			break
		}
		src = nextSrc

		req := executor.Execute(ctx, deps.Clock, step, deps.Timeout, vars, userID, deps.Sent)
		if req.Exception != nil && deps.ErrorSink != nil {
			deps.ErrorSink(scn.Name, userID, step.Name(), req.Exception)
		}
		emitted := req
		emitted.Exception = nil

		if result.Requests == nil {
			result.Start = emitted.Start
		}
		result.Requests = append(result.Requests, emitted)
		result.End = emitted.End

		for k, v := range req.ContextAfter {
			vars.Set(k, v)
		}

		if scn.SkipAfterFailure() && !emitted.Result {
			break
		}
		if scn.AllowEarlyTermination && deps.Runner != nil {
			if !deps.Runner.Continue(int(deps.Sent.Load()), deps.Start, deps.Clock.Now()) {
				break
			}
		}
		select {
		case <-deps.ForceStop:
			return finish(scn, vars, result)
		default:
		}
	}

	return finish(scn, vars, result)
}

func finish(scn *core.Scenario, vars core.Variables, result core.ScenarioResult) core.ScenarioResult {
	if scn.PostHook != nil {
		scn.PostHook(context.Background(), vars)
	}
	return result
}
