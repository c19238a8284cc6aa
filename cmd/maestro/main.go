// Command maestro runs a load simulation from a YAML scenario definition:
// a scheduler drives virtual users through named scenarios at either
// fixed concurrency or a target arrival rate, enforces per-step timeouts,
// and streams per-scenario results into a collector that renders latency
// percentiles and threshold pass/fail at the end of the run.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"maestro/internal/build"
	"maestro/internal/collector"
	"maestro/internal/config"
	"maestro/internal/httpstep"
	"maestro/internal/orchestrator"
	"maestro/internal/runner"
)

const (
	exitSuccess         = 0
	exitThresholdFailed = 1
	exitError           = 2
)

var rootCmd = &cobra.Command{
	Use:     "maestro",
	Short:   "A load-generation engine for scenario-driven virtual-user simulations",
	Version: "0.1.0",
	Long: `Maestro drives a population of virtual users through named scenarios,
either at a fixed concurrency or a target arrival rate, streaming
per-scenario results into a collector that reports latency percentiles
and threshold pass/fail once the run ends.`,
	RunE: runSimulation,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringP("config", "c", "", "path to the YAML simulation definition (required)")
	flags.IntP("concurrency", "n", 0, "virtual users, overriding execution.concurrency in the config")
	flags.Duration("duration", 0, "run duration, overriding execution.duration in the config")
	flags.Int("rate", 0, "target arrivals/sec across all scenarios, overriding execution.rate")
	flags.Int("global-rate-limit", 0, "cap the total scenario-start rate across every scenario and user")
	flags.String("output", "text", "result format: text or json")
	flags.BoolP("quiet", "q", false, "suppress the live progress line")
	flags.BoolP("verbose", "v", false, "log request/response traces for every step")
	flags.Duration("timeout", 0, "per-step timeout, overriding execution.timeoutMs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitError)
	}
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	if configPath == "" {
		return fmt.Errorf("--config is required")
	}
	output, _ := flags.GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("--output must be 'text' or 'json', got %q", output)
	}
	quiet, _ := flags.GetBool("quiet")
	verbose, _ := flags.GetBool("verbose")
	concurrencyOverride, _ := flags.GetInt("concurrency")
	durationOverride, _ := flags.GetDuration("duration")
	rateOverride, _ := flags.GetInt("rate")
	globalRateLimit, _ := flags.GetInt("global-rate-limit")
	timeout, _ := flags.GetDuration("timeout")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	exec := cfg.Execution
	if concurrencyOverride > 0 {
		exec.Concurrency = concurrencyOverride
	}
	if durationOverride > 0 {
		exec.Duration = durationOverride
	}
	if rateOverride > 0 {
		exec.Rate = rateOverride
	}
	if exec.Concurrency == 0 && len(exec.Users) == 0 {
		exec.Concurrency = 1
	}

	var debugLogger *httpstep.DebugLogger
	if verbose {
		debugLogger = httpstep.NewDebugLogger(os.Stderr)
	}

	built, err := build.Simulation(cfg, configPath, &http.Client{Timeout: 60 * time.Second}, debugLogger)
	if err != nil {
		return fmt.Errorf("building simulation: %w", err)
	}

	coll := collector.New()
	errLog := errorLogger(cfg.Execution.ErrorFile)
	defer errLog.Close()

	if globalRateLimit == 0 {
		globalRateLimit = exec.GlobalRateLimit
	}

	effectiveTimeout := exec.Timeout()
	if timeout > 0 {
		effectiveTimeout = timeout
	}

	if _, err := runner.New(runnerOptions(exec), len(resolveUsers(exec))); err != nil {
		return fmt.Errorf("configuring runner: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var forceStop func()
	interrupted := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			close(interrupted)
			if !quiet {
				fmt.Fprintln(os.Stderr, "\nreceived interrupt, finishing in-flight scenarios...")
			}
			if forceStop != nil {
				forceStop()
			}
		case <-ctx.Done():
		}
	}()

	opts := orchestrator.Options{
		Users:                  exec.Users,
		Concurrency:            exec.Concurrency,
		Rate:                   exec.Rate,
		Timeout:                effectiveTimeout,
		ErrorSink:              errLog.Log,
		GlobalRateLimit:        globalRateLimit,
		Runner:                 runnerOptions(exec),
		ShapingFactory:         built.ShapingFactory,
		DefaultProgressTracker: !quiet,
	}

	results, stop, err := orchestrator.Run(ctx, built.Simulation, opts)
	if err != nil {
		return fmt.Errorf("starting simulation: %w", err)
	}
	forceStop = stop

	for result := range results {
		coll.Add(result)
	}
	coll.Close()

	metrics := coll.Compute()
	var thresholdResults *collector.ThresholdResults
	if cfg.Thresholds != nil {
		thresholdResults = cfg.Thresholds.Check(metrics)
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		collector.FormatJSON(out, metrics, thresholdResults)
	} else {
		collector.FormatText(out, metrics, thresholdResults)
	}

	select {
	case <-interrupted:
		return nil
	default:
	}

	if thresholdResults != nil && !thresholdResults.Passed {
		os.Exit(exitThresholdFailed)
	}
	return nil
}

// resolveUsers mirrors the Orchestrator's own user-id derivation, needed
// here only to size the Runner's fixed-runs variant before Run is called.
func resolveUsers(exec config.ExecutionOptions) []int {
	if len(exec.Users) > 0 {
		return exec.Users
	}
	users := make([]int, exec.Concurrency)
	for i := range users {
		users[i] = i
	}
	return users
}

func runnerOptions(exec config.ExecutionOptions) runner.Options {
	return runner.Options{
		Duration:     exec.Duration,
		RequestCount: exec.RequestCount,
		FixedRuns:    exec.FixedRuns,
	}
}

// fileErrorLogger, built by errorLogger, appends one line per step
// exception to path, or discards quietly when path is empty or the file
// cannot be opened.
type fileErrorLogger struct {
	f *os.File
}

func errorLogger(path string) *fileErrorLogger {
	if path == "" {
		return &fileErrorLogger{}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open error file %q: %v\n", path, err)
		return &fileErrorLogger{}
	}
	return &fileErrorLogger{f: f}
}

func (l *fileErrorLogger) Log(scenarioName string, userID int, stepName string, err error) {
	if l.f == nil {
		return
	}
	fmt.Fprintf(l.f, "%s [user %d] %s/%s: %v\n", time.Now().Format(time.RFC3339), userID, scenarioName, stepName, err)
}

func (l *fileErrorLogger) Close() {
	if l.f != nil {
		l.f.Close()
	}
}

