// Package collector aggregates a simulation's ScenarioResult stream into
// latency/throughput metrics and evaluates pass/fail thresholds against
// them.
package collector

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"maestro/internal/core"
)

// histogramMax is the largest latency the collector tracks precisely;
// anything above it is clamped into the top bucket rather than dropped.
const histogramMax = int64(5 * time.Minute)

// histogramSigFigs is the number of significant decimal digits HDR
// histogram preserves at every magnitude.
const histogramSigFigs = 3

// Collector consumes RequestResults from a simulation's ScenarioResult
// stream and aggregates them into per-step and overall latency
// histograms, thread-safe for concurrent Add calls.
type Collector struct {
	mu         sync.Mutex
	overall    *hdrhistogram.Histogram
	steps      map[string]*hdrhistogram.Histogram
	stepCounts map[string]*stepCount
	total      int
	success    int
	startTime  time.Time
	endTime    time.Time
}

type stepCount struct {
	success int
	failed  int
}

// New returns a Collector whose clock starts now.
func New() *Collector {
	return &Collector{
		overall:    hdrhistogram.New(1, histogramMax, histogramSigFigs),
		steps:      make(map[string]*hdrhistogram.Histogram),
		stepCounts: make(map[string]*stepCount),
		startTime:  time.Now(),
	}
}

// Add folds every RequestResult of result into the running aggregates.
func (c *Collector) Add(result core.ScenarioResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, req := range result.Requests {
		c.total++
		if req.Result {
			c.success++
		}
		latency := req.End.Sub(req.Start).Nanoseconds()
		if latency > histogramMax {
			latency = histogramMax
		}
		_ = c.overall.RecordValue(latency)

		step, ok := c.steps[req.Name]
		if !ok {
			step = hdrhistogram.New(1, histogramMax, histogramSigFigs)
			c.steps[req.Name] = step
			c.stepCounts[req.Name] = &stepCount{}
		}
		_ = step.RecordValue(latency)
		if req.Result {
			c.stepCounts[req.Name].success++
		} else {
			c.stepCounts[req.Name].failed++
		}
	}
}

// Consume reads from results until it closes, calling Add for every
// ScenarioResult. It is meant to be run in its own goroutine against the
// channel returned by orchestrator.Run.
func (c *Collector) Consume(results <-chan core.ScenarioResult) {
	for result := range results {
		c.Add(result)
	}
}

// Close marks the collection window as finished; subsequent Duration
// calls report the time from New to Close rather than to now.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Duration reports the elapsed collection window: start to Close if
// closed, start to now otherwise.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durationLocked()
}

// durationLocked is Duration's computation for callers that already hold
// c.mu.
func (c *Collector) durationLocked() time.Duration {
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}

// Compute snapshots the current aggregates into a Metrics value.
func (c *Collector) Compute() *Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &Metrics{
		TotalRequests: c.total,
		SuccessCount:  c.success,
		FailureCount:  c.total - c.success,
		TestDuration:  c.durationLocked(),
		Duration:      durationMetricsFromHistogram(c.overall),
		Steps:         make(map[string]*StepMetrics, len(c.steps)),
	}
	if m.TotalRequests > 0 {
		m.SuccessRate = float64(m.SuccessCount) / float64(m.TotalRequests) * 100
	}
	if m.TestDuration > 0 {
		m.RequestsPerSec = float64(m.TotalRequests) / m.TestDuration.Seconds()
	}

	for name, h := range c.steps {
		counts := c.stepCounts[name]
		m.Steps[name] = &StepMetrics{
			Count:    int(h.TotalCount()),
			Success:  counts.success,
			Failed:   counts.failed,
			Duration: durationMetricsFromHistogram(h),
		}
	}
	return m
}

func durationMetricsFromHistogram(h *hdrhistogram.Histogram) DurationMetrics {
	return DurationMetrics{
		Min: time.Duration(h.Min()),
		Max: time.Duration(h.Max()),
		Avg: time.Duration(h.Mean()),
		P50: time.Duration(h.ValueAtQuantile(50)),
		P90: time.Duration(h.ValueAtQuantile(90)),
		P95: time.Duration(h.ValueAtQuantile(95)),
		P99: time.Duration(h.ValueAtQuantile(99)),
	}
}
