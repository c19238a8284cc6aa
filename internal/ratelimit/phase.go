package ratelimit

import (
	"time"

	"maestro/internal/config"
	"maestro/internal/core"
)

// PhaseShaping turns a sequence of load phases (name/duration/actor-count
// or start/end ramp) into a core.ShapingFunc: given the Runner's progress
// fraction, it locates the phase that fraction of the total phase duration
// falls into, computes that phase's target actor count (steady or
// linearly ramped), and expresses it as a multiplier of baseline. baseline
// should be the same base concurrency or rate the Driver multiplies by.
//
// This reproduces the interpolation a wall-clock PhaseManager would do,
// but keyed on progress instead of elapsed time, so it drives
// request-count and fixed-runs simulations the same way it drives
// duration-based ones.
func PhaseShaping(phases []config.Phase, baseline int) core.ShapingFunc {
	total := totalDuration(phases)
	return core.WithProgress(func(progress float64) float64 {
		if len(phases) == 0 || total <= 0 || baseline <= 0 {
			return 1
		}
		elapsed := time.Duration(progress * float64(total))

		var phaseStart time.Duration
		for i, phase := range phases {
			phaseEnd := phaseStart + phase.Duration
			if elapsed < phaseEnd || i == len(phases)-1 {
				target := targetActors(phase, elapsed-phaseStart)
				return float64(target) / float64(baseline)
			}
			phaseStart = phaseEnd
		}
		return 1
	})
}

func totalDuration(phases []config.Phase) time.Duration {
	var total time.Duration
	for _, p := range phases {
		total += p.Duration
	}
	return total
}

func targetActors(phase config.Phase, phaseElapsed time.Duration) int {
	if phase.Actors > 0 {
		return phase.Actors
	}
	if phase.StartActors == phase.EndActors {
		return phase.StartActors
	}
	if phase.Duration <= 0 {
		return phase.EndActors
	}

	progress := float64(phaseElapsed) / float64(phase.Duration)
	switch {
	case progress > 1:
		progress = 1
	case progress < 0:
		progress = 0
	}
	delta := float64(phase.EndActors - phase.StartActors)
	return phase.StartActors + int(delta*progress)
}
