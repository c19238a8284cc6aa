// Package driver implements the two ways a scenario's runs get scheduled
// for one virtual user: a constant-concurrency loop, and a
// constant-arrival-rate loop.
package driver

import (
	"context"
	"math/rand"
	"time"

	"maestro/internal/core"
	"maestro/internal/scenariorunner"
	"maestro/internal/state"
)

// pollInterval is how long an ineligible Concurrency Driver waits before
// re-checking whether it may launch another run.
const pollInterval = 200 * time.Millisecond

// Concurrency repeatedly runs scn for userID, gated by
// baseConcurrency x multiplier(progress) > current in-flight count for the
// scenario, until deps.Runner says stop or force-stop fires. Every
// ScenarioResult it produces is sent to sink; sink is closed on exit.
func Concurrency(ctx context.Context, deps scenariorunner.Deps, scenState *state.ScenarioState, scn *core.Scenario, userID int, baseConcurrency int, sink chan<- core.ScenarioResult) {
	defer close(sink)
	vars := core.VariablesFromMap(core.MergeMaps(scn.Context))
	warmup := core.NewWarmupGate(scn.WarmupIterations)

	for {
		sent := int(deps.Sent.Load())
		if !deps.Runner.Continue(sent, deps.Start, deps.Clock.Now()) {
			return
		}
		if isForceStopped(deps.ForceStop) {
			return
		}

		multiplier := 1.0
		if !scn.ConcurrencyDistribution.IsZero() {
			progress, _ := deps.Runner.Progress(sent, deps.Start, deps.Clock.Now())
			multiplier = scn.ConcurrencyDistribution.Call(progress, vars)
		}
		limit := float64(baseConcurrency) * multiplier
		if limit <= float64(scenState.InFlight.Load()) {
			select {
			case <-ctx.Done():
				return
			case <-deps.ForceStop:
				return
			case <-deps.Clock.Sleep(ctx, pollInterval):
			}
			continue
		}

		scenState.InFlight.Add(1)
		result := scenariorunner.Run(ctx, deps, scn, userID)
		scenState.InFlight.Add(-1)

		if warmup.Next() {
			continue
		}
		select {
		case sink <- result:
		case <-deps.ForceStop:
			return
		}
	}
}

// Rate repeatedly runs scn for userID at baseRate x multiplier(progress)
// arrivals/sec, committing each slot's time via sim's per-scenario
// RunTracker before sleeping to it, until deps.Runner says stop or
// force-stop fires. Every ScenarioResult it produces is sent to sink;
// sink is closed on exit.
func Rate(ctx context.Context, deps scenariorunner.Deps, sim *state.Simulation, scenState *state.ScenarioState, scn *core.Scenario, userID int, baseRate int, sink chan<- core.ScenarioResult) {
	defer close(sink)
	vars := core.VariablesFromMap(core.MergeMaps(scn.Context))
	warmup := core.NewWarmupGate(scn.WarmupIterations)

	for {
		if isForceStopped(deps.ForceStop) {
			return
		}

		sentForShaping := int(deps.Sent.Load())
		multiplier := 1.0
		if !scn.RateDistribution.IsZero() {
			progress, _ := deps.Runner.Progress(sentForShaping, deps.Start, deps.Clock.Now())
			multiplier = scn.RateDistribution.Call(progress, vars)
		}
		effectiveRate := float64(baseRate) * multiplier
		if effectiveRate <= 0 {
			select {
			case <-ctx.Done():
				return
			case <-deps.ForceStop:
				return
			case <-deps.Clock.Sleep(ctx, pollInterval):
			}
			continue
		}
		interval := time.Duration(1e9 / effectiveRate)
		jitter := time.Duration((rand.Float64()*2 - 1) * float64(interval) / 4)

		nextRunAt := scenState.Tracker().Add(interval + jitter)
		scenState.SetTracker(nextRunAt)

		prepared := int(sim.Counters.PreparedRequests.Add(1))
		if !deps.Runner.Continue(prepared, deps.Start, nextRunAt) {
			sim.Counters.PreparedRequests.Add(-1)
			return
		}

		if delay := nextRunAt.Sub(deps.Clock.Now()); delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-deps.ForceStop:
				return
			case <-deps.Clock.Sleep(ctx, delay):
			}
		}

		scenState.InFlight.Add(1)
		result := scenariorunner.Run(ctx, deps, scn, userID)
		scenState.InFlight.Add(-1)

		if warmup.Next() {
			continue
		}
		select {
		case sink <- result:
		case <-deps.ForceStop:
			return
		}
	}
}

func isForceStopped(forceStop <-chan struct{}) bool {
	select {
	case <-forceStop:
		return true
	default:
		return false
	}
}
