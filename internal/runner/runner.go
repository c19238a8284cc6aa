// Package runner implements the three termination-policy variants that
// decide when a driver stops launching new scenario runs and how far
// along the overall run is.
package runner

import (
	"errors"
	"strconv"
	"time"
)

// Runner is the termination policy a driver consults once per iteration.
type Runner interface {
	// Continue reports whether another run should be launched, given the
	// number of requests sent so far, the run's start time, and the time
	// the next run would actually fire (equal to now for the Concurrency
	// Driver, a future RunTracker value for the Rate Driver).
	Continue(sent int, start time.Time, nextRunAt time.Time) bool

	// Progress reports how far through the run this policy considers
	// itself, as a fraction in [0,1], plus elapsed wall time.
	Progress(sent int, start time.Time, now time.Time) (float64, time.Duration)

	// Info is a short human-readable description for progress output.
	Info() string
}

// Options is the subset of the Orchestrator's input that selects and
// parameterizes a Runner. Exactly one of Duration, RequestCount, or
// FixedRuns must be set.
type Options struct {
	Duration     time.Duration
	RequestCount int
	FixedRuns    int
}

// ErrNoTerminationPolicy is returned by New when none of Duration,
// RequestCount, or FixedRuns is set.
var ErrNoTerminationPolicy = errors.New("runner: one of duration, request count, or fixed runs must be set")

// New selects a Runner variant from opts: Duration takes priority over
// RequestCount, which takes priority over FixedRuns.
func New(opts Options, userCount int) (Runner, error) {
	switch {
	case opts.Duration > 0:
		return &DurationRunner{D: opts.Duration}, nil
	case opts.RequestCount > 0:
		return &RequestCountRunner{N: opts.RequestCount}, nil
	case opts.FixedRuns > 0:
		if userCount <= 0 {
			userCount = 1
		}
		return &FixedRunsRunner{K: opts.FixedRuns, Users: userCount}, nil
	default:
		return nil, ErrNoTerminationPolicy
	}
}

// DurationRunner continues launching runs until wall time D has elapsed
// since start, judged against the next run's scheduled time rather than
// now, so a Rate Driver's future-committed slot doesn't overshoot.
type DurationRunner struct {
	D time.Duration
}

func (r *DurationRunner) Continue(_ int, start time.Time, nextRunAt time.Time) bool {
	return nextRunAt.Before(start.Add(r.D))
}

func (r *DurationRunner) Progress(_ int, start time.Time, now time.Time) (float64, time.Duration) {
	elapsed := now.Sub(start)
	return clamp01(float64(elapsed) / float64(r.D)), elapsed
}

func (r *DurationRunner) Info() string {
	return "duration: " + r.D.String()
}

// RequestCountRunner continues until N total requests have been sent.
type RequestCountRunner struct {
	N int
}

func (r *RequestCountRunner) Continue(sent int, _ time.Time, _ time.Time) bool {
	return sent < r.N
}

func (r *RequestCountRunner) Progress(sent int, start time.Time, now time.Time) (float64, time.Duration) {
	return clamp01(float64(sent) / float64(r.N)), now.Sub(start)
}

func (r *RequestCountRunner) Info() string {
	return "request count: " + strconv.Itoa(r.N)
}

// FixedRunsRunner continues until each of Users virtual users has run the
// scenario K times, i.e. until K*Users total requests have been sent.
type FixedRunsRunner struct {
	K     int
	Users int
}

func (r *FixedRunsRunner) Continue(sent int, _ time.Time, _ time.Time) bool {
	return sent < r.K*r.Users
}

func (r *FixedRunsRunner) Progress(sent int, start time.Time, now time.Time) (float64, time.Duration) {
	total := r.K * r.Users
	return clamp01(float64(sent) / float64(total)), now.Sub(start)
}

func (r *FixedRunsRunner) Info() string {
	return strconv.Itoa(r.K) + " runs per user across " + strconv.Itoa(r.Users) + " users"
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
