package collector

import (
	"testing"
	"time"

	"maestro/internal/core"
)

func sampleResult(name string, userID int, success bool, latency time.Duration) core.ScenarioResult {
	start := time.Now()
	end := start.Add(latency)
	return core.ScenarioResult{
		Name:   "checkout",
		UserID: userID,
		Start:  start,
		End:    end,
		Requests: []core.RequestResult{
			{Name: name, UserID: userID, Start: start, End: end, Result: success},
		},
	}
}

func TestCollectorComputeEmpty(t *testing.T) {
	c := New()
	m := c.Compute()
	if m.TotalRequests != 0 {
		t.Errorf("got %d, want 0", m.TotalRequests)
	}
}

func TestCollectorAggregatesCountsAndRates(t *testing.T) {
	c := New()
	c.Add(sampleResult("login", 1, true, 10*time.Millisecond))
	c.Add(sampleResult("login", 2, false, 20*time.Millisecond))
	c.Add(sampleResult("login", 3, true, 30*time.Millisecond))

	m := c.Compute()
	if m.TotalRequests != 3 {
		t.Fatalf("got %d, want 3", m.TotalRequests)
	}
	if m.SuccessCount != 2 || m.FailureCount != 1 {
		t.Errorf("got success=%d failed=%d, want 2 and 1", m.SuccessCount, m.FailureCount)
	}
	wantRate := 2.0 / 3.0 * 100
	if m.SuccessRate < wantRate-0.01 || m.SuccessRate > wantRate+0.01 {
		t.Errorf("got success rate %v, want ~%v", m.SuccessRate, wantRate)
	}
}

func TestCollectorPerStepBreakdown(t *testing.T) {
	c := New()
	c.Add(sampleResult("login", 1, true, 10*time.Millisecond))
	c.Add(sampleResult("checkout", 1, true, 50*time.Millisecond))

	m := c.Compute()
	if len(m.Steps) != 2 {
		t.Fatalf("got %d step entries, want 2", len(m.Steps))
	}
	if m.Steps["login"].Count != 1 || m.Steps["checkout"].Count != 1 {
		t.Errorf("unexpected per-step counts: %+v", m.Steps)
	}
}

func TestCollectorHistogramPercentilesAreOrdered(t *testing.T) {
	c := New()
	for i := 1; i <= 100; i++ {
		c.Add(sampleResult("req", i, true, time.Duration(i)*time.Millisecond))
	}
	m := c.Compute()
	if m.Duration.P50 > m.Duration.P90 || m.Duration.P90 > m.Duration.P99 {
		t.Errorf("expected P50 <= P90 <= P99, got %v / %v / %v", m.Duration.P50, m.Duration.P90, m.Duration.P99)
	}
	if m.Duration.Min > m.Duration.P50 || m.Duration.P99 > m.Duration.Max {
		t.Errorf("expected Min <= P50 and P99 <= Max, got min=%v p50=%v p99=%v max=%v",
			m.Duration.Min, m.Duration.P50, m.Duration.P99, m.Duration.Max)
	}
}

func TestCollectorConsumeDrainsChannel(t *testing.T) {
	c := New()
	ch := make(chan core.ScenarioResult, 2)
	ch <- sampleResult("login", 1, true, time.Millisecond)
	ch <- sampleResult("login", 2, true, time.Millisecond)
	close(ch)

	c.Consume(ch)
	if m := c.Compute(); m.TotalRequests != 2 {
		t.Errorf("got %d, want 2", m.TotalRequests)
	}
}

func TestCollectorDurationFreezesAfterClose(t *testing.T) {
	c := New()
	time.Sleep(5 * time.Millisecond)
	c.Close()
	d1 := c.Duration()
	time.Sleep(5 * time.Millisecond)
	d2 := c.Duration()
	if d1 != d2 {
		t.Errorf("expected Duration to freeze after Close, got %v then %v", d1, d2)
	}
}
