package ratelimit_test

import (
	"context"
	"fmt"
	"time"

	"maestro/internal/config"
	"maestro/internal/ratelimit"
)

func ExampleNewRateLimiter() {
	limiter := ratelimit.NewRateLimiter(100)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx); err != nil {
			fmt.Println("Context cancelled")
			return
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("5 requests completed in under 100ms: %v\n", elapsed < 100*time.Millisecond)
	// Output: 5 requests completed in under 100ms: true
}

func ExampleRateLimiter_SetRate() {
	limiter := ratelimit.NewRateLimiter(10)
	limiter.SetRate(50)

	fmt.Println("Rate updated to 50 RPS")
	// Output: Rate updated to 50 RPS
}

func ExamplePhaseShaping() {
	phases := []config.Phase{
		{Name: "ramp_up", Duration: 10 * time.Second, StartActors: 1, EndActors: 10},
		{Name: "steady", Duration: 30 * time.Second, Actors: 10, RPS: 100},
		{Name: "ramp_down", Duration: 5 * time.Second, StartActors: 10, EndActors: 0},
	}

	shaping := ratelimit.PhaseShaping(phases, 10)
	fmt.Printf("multiplier at start: %.1f\n", shaping.Call(0, nil))
	// Output: multiplier at start: 0.1
}
