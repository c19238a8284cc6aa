// Package state holds the mutable counters and per-scenario scheduling
// state a running simulation needs, scoped to one Orchestrator.Run call
// instead of living as package-level globals.
package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SharedCounters are the process-wide atomics for one simulation: requests
// a rate driver has committed to a future slot, and requests that have
// actually started executing.
type SharedCounters struct {
	PreparedRequests atomic.Int64
	SentRequests     atomic.Int64
}

// ScenarioState is the per-scenario scheduling state touched only by that
// scenario's own drivers: its RunTracker and in-flight count.
type ScenarioState struct {
	// Tracker is the monotonic "next trigger time" consulted and advanced
	// only by a Rate Driver; unused by the Concurrency Driver.
	tracker  atomic.Int64 // unix nanoseconds
	InFlight atomic.Int32
}

// Tracker reads the scenario's next-run-at time.
func (s *ScenarioState) Tracker() time.Time {
	return time.Unix(0, s.tracker.Load())
}

// SetTracker sets the scenario's next-run-at time.
func (s *ScenarioState) SetTracker(t time.Time) {
	s.tracker.Store(t.UnixNano())
}

// Simulation is the shared state threaded through one Orchestrator.Run
// call: counters plus one ScenarioState per scenario, allocated once at
// setup and discarded once the result stream closes.
type Simulation struct {
	Counters  SharedCounters
	Start     time.Time
	scenarios map[string]*ScenarioState
	mu        sync.RWMutex
}

// NewSimulation allocates shared state for a run starting at start, with
// one ScenarioState per name in scenarioNames, each tracker initialised to
// start per spec.
func NewSimulation(start time.Time, scenarioNames []string) *Simulation {
	sim := &Simulation{
		Start:     start,
		scenarios: make(map[string]*ScenarioState, len(scenarioNames)),
	}
	for _, name := range scenarioNames {
		st := &ScenarioState{}
		st.SetTracker(start)
		sim.scenarios[name] = st
	}
	return sim
}

// Scenario returns the ScenarioState for name. Panics if name was not
// registered at NewSimulation time — every driver is created only for a
// scenario the Orchestrator already knows about.
func (s *Simulation) Scenario(name string) *ScenarioState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.scenarios[name]
	if !ok {
		panic("state: unknown scenario " + name)
	}
	return st
}

// ForceStop is an edge-triggered, write-once stop signal derived from a
// parent context. Any caller may Trigger it; every reader sees it via
// Done() or Triggered(), satisfying "write-once, readable by all" without
// extra locking.
type ForceStop struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewForceStop derives a ForceStop from parent. The returned context is
// cancelled exactly once, either by Trigger or by parent's own
// cancellation.
func NewForceStop(parent context.Context) *ForceStop {
	ctx, cancel := context.WithCancel(parent)
	return &ForceStop{ctx: ctx, cancel: cancel}
}

// Trigger fires the stop signal. Safe to call multiple times or
// concurrently; only the first call has any effect.
func (f *ForceStop) Trigger() {
	f.once.Do(f.cancel)
}

// Done reports the channel that closes once Trigger fires or the parent
// context ends.
func (f *ForceStop) Done() <-chan struct{} {
	return f.ctx.Done()
}

// Triggered reports whether the stop signal has fired.
func (f *ForceStop) Triggered() bool {
	select {
	case <-f.ctx.Done():
		return true
	default:
		return false
	}
}

// Context returns the derived context, for passing to anything that wants
// to select on force-stop alongside its own cancellation.
func (f *ForceStop) Context() context.Context {
	return f.ctx
}
