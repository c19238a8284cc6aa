package core

// WarmupGate suppresses result emission for a fixed number of leading
// iterations. A scenario configured with warmup iterations gives each
// driver its own gate so ramp-up noise never reaches the reported metrics.
// Not safe for concurrent use; each driver owns exactly one.
type WarmupGate struct {
	limit int
	count int
}

// NewWarmupGate returns a gate that treats the first limit calls to Next
// as warmup. limit <= 0 disables warmup entirely.
func NewWarmupGate(limit int) *WarmupGate {
	return &WarmupGate{limit: limit}
}

// Next reports whether the upcoming iteration is still warmup, then
// advances the counter.
func (g *WarmupGate) Next() bool {
	warmup := g.count < g.limit
	g.count++
	return warmup
}
