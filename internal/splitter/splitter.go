// Package splitter implements the largest-remainder allocation that
// partitions virtual users and target rate across scenarios proportional
// to their weight.
package splitter

import "sort"

// Split partitions userIDs into len(weights) disjoint, contiguous slices
// proportional to weights. Every user ID appears in exactly one output
// slice; every scenario with a positive weight receives at least one user
// whenever there are at least as many users as scenarios.
func Split(userIDs []int, weights []int) [][]int {
	counts := allocate(len(userIDs), weights)
	out := make([][]int, len(weights))
	cursor := 0
	for i, c := range counts {
		out[i] = append([]int(nil), userIDs[cursor:cursor+c]...)
		cursor += c
	}
	return out
}

// SplitRate divides rate proportionally into len(weights) integer
// per-scenario rates summing to rate, each at least 1 when its weight is
// positive and rate allows.
func SplitRate(rate int, weights []int) []int {
	return allocate(rate, weights)
}

// SplitUsers combines Split and SplitRate for the Orchestrator's setup
// step: userIDs are partitioned as Split would, and if rate > 0 it is
// split the same way, scenario for scenario.
func SplitUsers(userIDs []int, rate int, weights []int) (users [][]int, rates []int) {
	users = Split(userIDs, weights)
	if rate > 0 {
		rates = SplitRate(rate, weights)
	}
	return users, rates
}

// allocate distributes total units across len(weights) buckets
// proportional to weight, using largest-remainder apportionment: each
// bucket's floor(total*weight/sum) share is assigned first, then the
// remaining units go to the buckets with the largest fractional
// remainder, then any positive-weight bucket still at zero steals one
// unit from the largest bucket.
func allocate(total int, weights []int) []int {
	n := len(weights)
	out := make([]int, n)
	if n == 0 || total <= 0 {
		return out
	}

	sum := 0
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	if sum == 0 {
		return out
	}

	type remainder struct {
		idx  int
		frac float64
	}
	remainders := make([]remainder, 0, n)
	assigned := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		share := float64(total) * float64(w) / float64(sum)
		floor := int(share)
		out[i] = floor
		assigned += floor
		remainders = append(remainders, remainder{idx: i, frac: share - float64(floor)})
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac > remainders[b].frac
	})
	for i := 0; i < total-assigned && i < len(remainders); i++ {
		out[remainders[i].idx]++
	}

	ensureMinimums(out, weights)
	return out
}

// ensureMinimums guarantees every positive-weight bucket has at least one
// unit, stealing from the currently largest bucket whenever a bucket is
// still at zero and there are surplus units elsewhere to take from.
func ensureMinimums(out []int, weights []int) {
	for i, w := range weights {
		if w <= 0 || out[i] > 0 {
			continue
		}
		largest := -1
		for j := range out {
			if weights[j] <= 0 || j == i {
				continue
			}
			if out[j] > 1 && (largest == -1 || out[j] > out[largest]) {
				largest = j
			}
		}
		if largest == -1 {
			continue
		}
		out[largest]--
		out[i]++
	}
}
