// Package orchestrator wires the Runner, Weighted Splitter, Drivers, and
// Scenario Runner together into the single entry point that runs a whole
// simulation and streams its results.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"maestro/internal/core"
	"maestro/internal/driver"
	"maestro/internal/progress"
	"maestro/internal/ratelimit"
	"maestro/internal/runner"
	"maestro/internal/scenariorunner"
	"maestro/internal/splitter"
	"maestro/internal/state"
)

// Options is the full set of inputs external to the Simulation itself,
// matching spec.md §6's "Options recognised" list.
type Options struct {
	Users       []int
	Concurrency int
	Rate        int
	Context     map[string]any
	Timeout     time.Duration
	ErrorSink   func(scenarioName string, userID int, stepName string, err error)

	ConcurrencyDistribution core.ShapingFunc
	RateDistribution        core.ShapingFunc

	Runner runner.Options

	ProgressTracker        progress.Tracker
	DefaultProgressTracker bool

	// GlobalRateLimit, when > 0, caps the total scenario-start rate
	// across every scenario and user, independent of per-scenario rate
	// or concurrency targets.
	GlobalRateLimit int

	// ShapingFactory, when set, is consulted once per scenario after
	// weighted splitting (so it knows the final assigned-user count) and
	// may return scenario-specific concurrency/rate distributions that
	// take priority over ConcurrencyDistribution/RateDistribution above.
	// A zero ShapingFunc in either return value leaves that scenario's
	// existing distribution untouched. This is how a YAML-configured
	// load profile's ramp phases reach a scenario without the
	// orchestrator importing the config package.
	ShapingFactory func(scenarioName string, assignedUsers int) (concurrency, rate core.ShapingFunc)
}

// ErrNoScenarios is returned by Run when sim has no scenarios to execute.
var ErrNoScenarios = errors.New("orchestrator: simulation has no scenarios")

// Run validates sim and opts, sets up shared state, and launches one
// driver per (scenario, assigned user). It returns a channel streaming
// every ScenarioResult as scenarios complete, and a force-stop function:
// calling it stops new scenario runs from launching while in-flight runs
// finish naturally, after which the returned channel closes.
func Run(ctx context.Context, sim core.Simulation, opts Options) (<-chan core.ScenarioResult, func(), error) {
	if len(sim.Scenarios) == 0 {
		return nil, nil, ErrNoScenarios
	}

	userIDs := opts.Users
	if len(userIDs) == 0 {
		userIDs = make([]int, opts.Concurrency)
		for i := range userIDs {
			userIDs[i] = i
		}
	}

	baseContext := core.MergeMaps(sim.Context, opts.Context)
	if sim.PreHook != nil {
		vars := core.VariablesFromMap(baseContext)
		if replaced, err := sim.PreHook(ctx, vars); err == nil && replaced != nil {
			baseContext = replaced.Snapshot()
		}
	}

	r, err := runner.New(opts.Runner, len(userIDs))
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, len(sim.Scenarios))
	weights := make([]int, len(sim.Scenarios))
	for i, scn := range sim.Scenarios {
		names[i] = scn.Name
		weights[i] = scn.EffectiveWeight()
		if scn.Context == nil {
			scn.Context = map[string]any{}
		}
		scn.Context = core.MergeMaps(baseContext, scn.Context)
	}

	usersSplit, ratesSplit := splitter.SplitUsers(userIDs, opts.Rate, weights)
	for i, scn := range sim.Scenarios {
		scn.Users = usersSplit[i]
		if opts.Rate > 0 {
			scn.Rate = ratesSplit[i]
		}
		if scn.ConcurrencyDistribution.IsZero() {
			scn.ConcurrencyDistribution = opts.ConcurrencyDistribution
		}
		if scn.RateDistribution.IsZero() {
			scn.RateDistribution = opts.RateDistribution
		}
		if opts.ShapingFactory != nil {
			if cd, rd := opts.ShapingFactory(scn.Name, len(scn.Users)); !cd.IsZero() || !rd.IsZero() {
				if !cd.IsZero() {
					scn.ConcurrencyDistribution = cd
				}
				if !rd.IsZero() {
					scn.RateDistribution = rd
				}
			}
		}
	}

	start := time.Now()
	stateSim := state.NewSimulation(start, names)
	forceStop := state.NewForceStop(ctx)

	var limiter *ratelimit.RateLimiter
	if opts.GlobalRateLimit > 0 {
		limiter = ratelimit.NewRateLimiter(opts.GlobalRateLimit)
	}

	tracker := opts.ProgressTracker
	if tracker == nil {
		if opts.DefaultProgressTracker {
			tracker = progress.NewDefault(r, stateSim)
		} else {
			tracker = progress.Noop{}
		}
	}
	tracker.Start(forceStop.Trigger)

	deps := scenariorunner.Deps{
		Clock:     core.RealClock{},
		Timeout:   opts.Timeout,
		ErrorSink: opts.ErrorSink,
		Runner:    r,
		Sent:      &stateSim.Counters.SentRequests,
		ForceStop: forceStop.Done(),
		Start:     start,
		Limiter:   limiter,
	}

	global := make(chan core.ScenarioResult)
	var scenarioWg sync.WaitGroup

	for _, scn := range sim.Scenarios {
		scenState := stateSim.Scenario(scn.Name)
		perScenario := make(chan core.ScenarioResult)
		var driverWg sync.WaitGroup

		for _, userID := range scn.Users {
			sink := make(chan core.ScenarioResult)
			driverWg.Add(1)
			go func(scn *core.Scenario, userID int) {
				defer driverWg.Done()
				if scn.Rate > 0 {
					baseRate := scn.Rate / maxInt(len(scn.Users), 1)
					if baseRate < 1 {
						baseRate = 1
					}
					driver.Rate(ctx, deps, stateSim, scenState, scn, userID, baseRate, sink)
				} else {
					driver.Concurrency(ctx, deps, scenState, scn, userID, len(scn.Users), sink)
				}
			}(scn, userID)
			driverWg.Add(1)
			go forward(sink, perScenario, &driverWg)
		}

		go func(perScenario chan core.ScenarioResult) {
			driverWg.Wait()
			close(perScenario)
		}(perScenario)

		scenarioWg.Add(1)
		go forward(perScenario, global, &scenarioWg)
	}

	go func() {
		scenarioWg.Wait()
		close(global)
		tracker.Stop()
		if sim.PostHook != nil {
			sim.PostHook(context.Background(), core.VariablesFromMap(baseContext))
		}
	}()

	return global, forceStop.Trigger, nil
}

// forward copies every value from src to dst, decrementing wg when src
// closes. It never closes dst itself: dst is closed by the caller once
// every forward feeding it has finished.
func forward(src <-chan core.ScenarioResult, dst chan<- core.ScenarioResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for v := range src {
		dst <- v
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
