// Package build assembles a core.Simulation and its data sources from a
// parsed config.Config, the way a real run's entry point needs them. It
// sits above config, core, httpstep, data, and ratelimit so none of those
// lower packages have to import each other just to wire a CLI together.
package build

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"maestro/internal/config"
	"maestro/internal/core"
	"maestro/internal/data"
	"maestro/internal/httpstep"
	"maestro/internal/ratelimit"
)

// Result is everything Simulation needs alongside the orchestrator
// options it informs.
type Result struct {
	Simulation core.Simulation
	Sources    data.Sources
	// ShapingFactory mirrors orchestrator.Options.ShapingFactory: non-nil
	// only when cfg has a LoadProfile and at least one scenario opts into
	// it via UsePhases.
	ShapingFactory func(scenarioName string, assignedUsers int) (core.ShapingFunc, core.ShapingFunc)
}

// Simulation turns cfg into a core.Simulation: one core.Scenario per
// config.ScenarioConfig, one core.Step per config.StepConfig built via
// httpstep.New, and a data.Sources map loaded from cfg.DataSources.
// configPath is used to resolve relative data source paths.
func Simulation(cfg *config.Config, configPath string, client *http.Client, debug *httpstep.DebugLogger) (*Result, error) {
	if client == nil {
		client = http.DefaultClient
	}
	configDir := filepath.Dir(configPath)

	sources := make(data.Sources, len(cfg.DataSources))
	for name, dsCfg := range cfg.DataSources {
		src, err := data.LoadFile(name, dsCfg.Path, data.Mode(dsCfg.Mode), configDir)
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", name, err)
		}
		sources[name] = src
	}

	usesPhases := false
	scenarios := make([]*core.Scenario, len(cfg.Scenarios))
	for i, scnCfg := range cfg.Scenarios {
		scn := core.NewScenario(scnCfg.Name)
		scn.Weight = scnCfg.Weight
		scn.Rate = scnCfg.Rate
		scn.WarmupIterations = scnCfg.WarmupIterations
		scn.AllowEarlyTermination = scnCfg.AllowEarlyTermination
		if scnCfg.SkipAfterFailure != nil {
			scn.SkipNextAfterFailure = scnCfg.SkipAfterFailure
		}

		steps := make([]core.Step, len(scnCfg.Steps))
		for j, stepCfg := range scnCfg.Steps {
			steps[j] = httpstep.New(stepCfg, client, debug)
		}
		scn.Steps = steps

		if scnCfg.DataSource != "" {
			src, ok := sources[scnCfg.DataSource]
			if !ok {
				return nil, fmt.Errorf("scenario %q: data source %q not loaded", scn.Name, scnCfg.DataSource)
			}
			scn.PreHook = dataSourceHook(src)
		}

		if scnCfg.UsePhases {
			usesPhases = true
		}

		scenarios[i] = scn
	}

	result := &Result{
		Simulation: core.Simulation{Scenarios: scenarios},
		Sources:    sources,
	}

	if usesPhases && cfg.LoadProfile != nil {
		phaseByScenario := make(map[string]bool, len(cfg.Scenarios))
		for _, scnCfg := range cfg.Scenarios {
			phaseByScenario[scnCfg.Name] = scnCfg.UsePhases
		}
		phases := cfg.LoadProfile.Phases
		result.ShapingFactory = func(scenarioName string, assignedUsers int) (core.ShapingFunc, core.ShapingFunc) {
			if !phaseByScenario[scenarioName] || assignedUsers <= 0 {
				return core.ShapingFunc{}, core.ShapingFunc{}
			}
			shaping := ratelimit.PhaseShaping(phases, assignedUsers)
			return shaping, shaping
		}
	}

	return result, nil
}

// dataSourceHook returns a core.Hook that merges the next row of src,
// namespaced under "data.<name>.<field>", into the running context once
// per scenario run, the way a scenario-level PreHook is documented to
// replace context in spec.md §4.5.
func dataSourceHook(src *data.Source) core.Hook {
	return func(ctx context.Context, vars core.Variables) (core.Variables, error) {
		row := src.Next()
		for field, value := range row {
			vars.Set(fmt.Sprintf("data.%s.%s", src.Name(), field), value)
		}
		return vars, nil
	}
}
