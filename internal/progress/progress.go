// Package progress renders a live terminal progress line for a running
// simulation. It is an external collaborator in the sense of spec.md
// §6: the engine only calls Start/Stop against the Tracker interface and
// never inspects its output.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"maestro/internal/runner"
	"maestro/internal/state"
)

// Tracker is the progress-reporting collaborator the Orchestrator drives.
// Start receives the simulation's force-stop func so a Tracker can act as
// a circuit-breaker (spec.md §9 "Progress tracker coupling": "it may call
// force-stop-fn") — e.g. a threshold-watching Tracker that aborts the run
// once an error-rate threshold trips mid-flight.
type Tracker interface {
	Start(forceStop func())
	Stop()
	Printf(format string, args ...any)
}

// Default is the built-in terminal Tracker: a ticker that overwrites the
// current line once a second with sent/prepared counts and the Runner's
// notion of overall progress.
type Default struct {
	runner    runner.Runner
	sim       *state.Simulation
	forceStop func()
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	output    io.Writer
	mu        sync.Mutex
}

// NewDefault returns a Default tracker writing to os.Stderr.
func NewDefault(r runner.Runner, sim *state.Simulation) *Default {
	return &Default{runner: r, sim: sim, output: os.Stderr}
}

// SetOutput redirects the progress line, primarily for tests.
func (d *Default) SetOutput(w io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.output = w
}

// progressColor renders fraction as a percentage string, colorized cyan
// when d.output is a real terminal and left plain otherwise — piping the
// progress line to a file or capturing it in a test should never embed
// escape codes in the number itself.
func (d *Default) progressColor(fraction float64) string {
	pct := fmt.Sprintf("%.1f%%", fraction*100)
	if f, ok := d.output.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return color.CyanString(pct)
	}
	return pct
}

func (d *Default) Start(forceStop func()) {
	d.forceStop = forceStop
	d.stopCh = make(chan struct{})
	d.ticker = time.NewTicker(time.Second)
	go d.run()
}

func (d *Default) run() {
	for {
		select {
		case <-d.stopCh:
			return
		case <-d.ticker.C:
			d.print()
		}
	}
}

func (d *Default) print() {
	now := time.Now()
	sent := int(d.sim.Counters.SentRequests.Load())
	prepared := int(d.sim.Counters.PreparedRequests.Load())
	fraction, elapsed := d.runner.Progress(sent, d.sim.Start, now)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60

	d.mu.Lock()
	fmt.Fprintf(d.output, "\033[K[%02d:%02d] sent: %d | prepared: %d | progress: %s",
		mins, secs, sent, prepared, d.progressColor(fraction))
	d.mu.Unlock()
}

func (d *Default) Stop() {
	if d.stopped.Swap(true) {
		return
	}
	if d.ticker != nil {
		d.ticker.Stop()
	}
	if d.stopCh != nil {
		close(d.stopCh)
	}
	d.mu.Lock()
	fmt.Fprint(d.output, "\033[K")
	d.mu.Unlock()
}

func (d *Default) Printf(format string, args ...any) {
	d.mu.Lock()
	fmt.Fprintf(d.output, "\033[K"+format+"\n", args...)
	d.mu.Unlock()
}

// Noop discards all progress output, for --quiet and for tests that don't
// want a background goroutine.
type Noop struct{}

func (Noop) Start(forceStop func())         {}
func (Noop) Stop()                          {}
func (Noop) Printf(format string, a ...any) {}
