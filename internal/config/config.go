// Package config handles YAML simulation definitions: many named,
// weighted scenarios sharing execution options, optional load-shaping
// phases, data sources, and pass/fail thresholds.
package config

import (
	"fmt"
	"os"
	"time"

	"maestro/internal/collector"

	"gopkg.in/yaml.v3"
)

// Config is the root simulation definition.
type Config struct {
	Scenarios   []ScenarioConfig            `yaml:"scenarios"`
	Execution   ExecutionOptions            `yaml:"execution"`
	LoadProfile *LoadProfile                `yaml:"loadProfile,omitempty"`
	Thresholds  *collector.Thresholds       `yaml:"thresholds,omitempty"`
	DataSources map[string]DataSourceConfig `yaml:"dataSources,omitempty"`
}

// ExecutionOptions controls how long the simulation runs and how virtual
// users are provisioned; it maps directly onto runner.Options and
// orchestrator.Options.
type ExecutionOptions struct {
	Duration     time.Duration `yaml:"duration,omitempty"`
	RequestCount int           `yaml:"requestCount,omitempty"`
	FixedRuns    int           `yaml:"fixedRuns,omitempty"`

	Concurrency int   `yaml:"concurrency,omitempty"`
	Rate        int   `yaml:"rate,omitempty"`
	Users       []int `yaml:"users,omitempty"`

	TimeoutMs       int    `yaml:"timeoutMs,omitempty"`
	GlobalRateLimit int    `yaml:"globalRateLimit,omitempty"`
	ErrorFile       string `yaml:"errorFile,omitempty"`
}

// Timeout returns TimeoutMs as a time.Duration, defaulting to 30s when
// unset.
func (e ExecutionOptions) Timeout() time.Duration {
	if e.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.TimeoutMs) * time.Millisecond
}

// LoadProfile defines a ramp/steady/ramp-down load shape shared across
// scenarios that opt into it via ScenarioConfig.UsePhases.
type LoadProfile struct {
	Phases []Phase `yaml:"phases"`
}

// TotalDuration returns the sum of all phase durations.
func (lp *LoadProfile) TotalDuration() time.Duration {
	var total time.Duration
	for _, p := range lp.Phases {
		total += p.Duration
	}
	return total
}

// Phase is a single stage of a LoadProfile: either a steady actor/RPS
// count, or a linear ramp between StartActors and EndActors.
type Phase struct {
	Name        string        `yaml:"name"`
	Duration    time.Duration `yaml:"duration"`
	Actors      int           `yaml:"actors"`
	StartActors int           `yaml:"startActors"`
	EndActors   int           `yaml:"endActors"`
	RPS         int           `yaml:"rps"`
}

// ScenarioConfig defines one named, weighted scenario: a sequence of
// steps plus the policy knobs core.Scenario exposes.
type ScenarioConfig struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight,omitempty"`
	Rate   int    `yaml:"rate,omitempty"`

	WarmupIterations      int   `yaml:"warmupIterations,omitempty"`
	AllowEarlyTermination bool  `yaml:"allowEarlyTermination,omitempty"`
	SkipAfterFailure      *bool `yaml:"skipAfterFailure,omitempty"`

	// UsePhases, when true, drives this scenario's concurrency (or rate,
	// if Rate is set) from the top-level LoadProfile instead of a flat
	// target.
	UsePhases bool `yaml:"usePhases,omitempty"`

	// DataSource names an entry in Config.DataSources whose rows are
	// merged into this scenario's context once per run.
	DataSource string `yaml:"dataSource,omitempty"`

	Steps []StepConfig `yaml:"steps"`
}

// StepConfig defines a single templated HTTP request step.
type StepConfig struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
	Extract map[string]string `yaml:"extract,omitempty"`
}

// DataSourceConfig points at a CSV/JSON file backing parameterized runs.
type DataSourceConfig struct {
	Path string `yaml:"path"`
	Mode string `yaml:"mode,omitempty"` // "sequential" (default) or "random"
}

// Load reads, parses, and validates a YAML simulation definition from
// path. A schema or business-rule violation is returned as
// ValidationErrors, the spec's "Validation error" category: the caller
// sees it before any worker launches.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
