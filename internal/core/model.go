package core

import (
	"context"
	"time"
)

// RequestFunc is the opaque call interface a Step invokes. It may return a
// plain value (truthy-interpreted), a Pair carrying a replacement context,
// an error (exception-like), or an Awaitable wrapping any of those as a
// deferred result. Panics raised inside it are recovered by the executor,
// not by RequestFunc itself.
type RequestFunc func(ctx context.Context, vars Variables) any

// SleepBeforeFunc returns how long to pause before a step's RequestFunc
// runs, given the context at that point.
type SleepBeforeFunc func(vars Variables) time.Duration

// Step is a single executable action in a scenario.
type Step struct {
	StepName    string
	Request     RequestFunc
	SleepBefore SleepBeforeFunc
}

func (s Step) Name() string { return s.StepName }

// StepFn generates steps dynamically instead of (or after) a fixed
// sequence. It is re-consulted after the fixed sequence is exhausted until
// it signals termination by returning ok=false. next carries a possibly
// updated context, mirroring the "[step, new-context]" generator shape.
type StepFn func(ctx context.Context, vars Variables) (step Step, next map[string]any, ok bool)

// Hook runs once: a simulation- or scenario-level pre-hook that can
// replace the running context. Post-hooks use PostHook.
type Hook func(ctx context.Context, vars Variables) (Variables, error)

// PostHook observes the final context of a run; it cannot alter it.
type PostHook func(ctx context.Context, vars Variables)

// Scenario is a named, ordered composition of steps executed per virtual
// user. Construct with NewScenario to get the spec's documented defaults
// (Weight=1, SkipNextAfterFailure=true).
type Scenario struct {
	Name    string
	Weight  int
	Steps   []Step
	StepFn  StepFn
	Context map[string]any

	PreHook  Hook
	PostHook PostHook

	AllowEarlyTermination bool
	// SkipNextAfterFailure defaults to true (nil == true) so a struct
	// literal without an explicit pointer still gets the spec default;
	// set with core.Bool(false) to disable skip-on-failure.
	SkipNextAfterFailure *bool

	// Rate, in arrivals/sec, selects the Rate Driver for this scenario
	// instead of the Concurrency Driver. Zero means concurrency-driven.
	Rate int

	// Users is populated by the weighted splitter before drivers launch.
	Users []int

	// ConcurrencyDistribution / RateDistribution shape load dynamically;
	// at most one is consulted, depending on whether Rate is set.
	ConcurrencyDistribution ShapingFunc
	RateDistribution        ShapingFunc

	// WarmupIterations leading runs per user report through a discarding
	// sink instead of the real one.
	WarmupIterations int
}

// NewScenario returns a Scenario with the spec-documented defaults applied.
func NewScenario(name string, steps ...Step) *Scenario {
	return &Scenario{
		Name:                 name,
		Weight:               1,
		Steps:                steps,
		SkipNextAfterFailure: Bool(true),
	}
}

// SkipAfterFailure resolves the scenario's skip-on-failure policy,
// defaulting to true when unset.
func (s *Scenario) SkipAfterFailure() bool {
	if s.SkipNextAfterFailure == nil {
		return true
	}
	return *s.SkipNextAfterFailure
}

// EffectiveWeight returns Weight, defaulting to 1 when unset or negative.
func (s *Scenario) EffectiveWeight() int {
	if s.Weight <= 0 {
		return 1
	}
	return s.Weight
}

// Bool returns a pointer to b, for setting Scenario.SkipNextAfterFailure
// inline.
func Bool(b bool) *bool { return &b }

// Simulation is the top-level input to the Orchestrator: a set of
// scenarios sharing a base context and optional simulation-wide hooks.
type Simulation struct {
	Scenarios []*Scenario
	Context   map[string]any
	PreHook   Hook
	PostHook  PostHook
}

// RequestResult is the outcome of one Step Executor invocation.
// Start <= End always holds; Result is false whenever Exception is set or
// the step timed out.
type RequestResult struct {
	Name          string
	UserID        int
	Start         time.Time
	End           time.Time
	Result        bool
	ContextBefore map[string]any
	ContextAfter  map[string]any
	Exception     error
}

// ScenarioResult is the outcome of one full scenario run for one user.
// Start is the first request's Start; End is the last request's End.
type ScenarioResult struct {
	Name     string
	UserID   int
	Start    time.Time
	End      time.Time
	Requests []RequestResult
}
