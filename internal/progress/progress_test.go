package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"maestro/internal/runner"
	"maestro/internal/state"
)

func newTestDefault() *Default {
	sim := state.NewSimulation(time.Now(), []string{"checkout"})
	r := &runner.RequestCountRunner{N: 100}
	return NewDefault(r, sim)
}

func TestDefaultDoubleStopDoesNotPanic(t *testing.T) {
	d := newTestDefault()
	d.Start(func() {})
	d.Stop()
	d.Stop()
}

func TestDefaultStopWithoutStartDoesNotPanic(t *testing.T) {
	d := newTestDefault()
	d.Stop()
}

func TestDefaultPrintf(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDefault()
	d.SetOutput(&buf)

	d.Printf("scenario %s: %d users", "checkout", 10)

	output := buf.String()
	if !strings.Contains(output, "\033[K") {
		t.Error("expected output to contain the line-clear escape sequence")
	}
	if !strings.Contains(output, "scenario checkout: 10 users\n") {
		t.Errorf("expected formatted message, got: %q", output)
	}
}

func TestDefaultSetOutputRedirects(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	d := newTestDefault()

	d.SetOutput(&buf1)
	d.Printf("message1")

	d.SetOutput(&buf2)
	d.Printf("message2")

	if !strings.Contains(buf1.String(), "message1") {
		t.Error("expected message1 in buf1")
	}
	if strings.Contains(buf1.String(), "message2") {
		t.Error("buf1 should not contain message2")
	}
	if !strings.Contains(buf2.String(), "message2") {
		t.Error("expected message2 in buf2")
	}
}

func TestDefaultPrintReportsSentCount(t *testing.T) {
	sim := state.NewSimulation(time.Now(), []string{"checkout"})
	sim.Counters.SentRequests.Add(5)
	r := &runner.RequestCountRunner{N: 100}
	d := NewDefault(r, sim)

	var buf bytes.Buffer
	d.SetOutput(&buf)
	d.print()

	output := buf.String()
	if !strings.Contains(output, "sent: 5") {
		t.Errorf("expected sent count in output, got: %q", output)
	}
}

func TestDefaultStartStoresForceStopFunc(t *testing.T) {
	d := newTestDefault()
	var called bool
	d.Start(func() { called = true })
	defer d.Stop()

	d.forceStop()
	if !called {
		t.Error("expected the force-stop func passed to Start to be reachable from the tracker")
	}
}

func TestNoopDoesNothing(t *testing.T) {
	var n Noop
	n.Start(func() {})
	n.Printf("should not panic: %d", 1)
	n.Stop()
}
