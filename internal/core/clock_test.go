package core

import (
	"context"
	"testing"
	"time"
)

func TestRealClockSleepCompletes(t *testing.T) {
	c := RealClock{}
	start := c.Now()
	<-c.Sleep(context.Background(), 10*time.Millisecond)
	if c.Since(start) < 5*time.Millisecond {
		t.Errorf("expected at least ~10ms to elapse, got %v", c.Since(start))
	}
}

func TestRealClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := RealClock{}
	done := c.Sleep(ctx, time.Hour)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep did not unblock on context cancellation")
	}
}

func TestFakeClockAdvanceUnblocksSleep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	done := c.Sleep(context.Background(), 5*time.Second)

	select {
	case <-done:
		t.Fatal("sleep resolved before deadline")
	case <-time.After(20 * time.Millisecond):
	}

	c.Advance(5 * time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sleep did not resolve after Advance")
	}
}

func TestFakeClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewFakeClock(time.Now())
	done := c.Sleep(ctx, time.Hour)
	cancel()
	c.Advance(0) // wake the loop so it observes ctx.Done
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fake sleep did not unblock on cancellation")
	}
}
