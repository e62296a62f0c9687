// Package stats reduces raw measurement sequences to per-phase records.
package stats

import (
	"sort"

	"github.com/saveenergy/netstrain/pkg/types"
)

// ReduceLatency reduces a phase's probe samples to order statistics.
// Percentiles are floor-index lookups into the sorted sample set, not
// interpolated estimates; the exact indices are part of the output
// contract. For small n the p10/p90 indices may collapse onto the same
// element, so p10 == min is a legitimate result.
func ReduceLatency(samples []types.LatencySample) types.LatencyStats {
	valid := make([]float64, 0, len(samples))
	dropped := 0
	for _, s := range samples {
		if s.Dropped {
			dropped++
			continue
		}
		valid = append(valid, s.RTTMs)
	}

	n := len(valid)

	var loss float64
	if dropped+n > 0 {
		loss = float64(dropped) / float64(dropped+n) * 100
	}

	if n == 0 {
		// Nothing came back. Count reports as 1 and the order
		// statistics keep their zero value; loss still reflects the
		// real probe counts.
		return types.LatencyStats{Count: 1, LossPercent: loss}
	}

	sorted := make([]float64, n)
	copy(sorted, valid)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return types.LatencyStats{
		Count:       n,
		LossPercent: loss,
		MinMs:       sorted[0],
		P10Ms:       sorted[n/10],
		MedianMs:    sorted[(n-1)/2],
		AvgMs:       sum / float64(n),
		P90Ms:       sorted[n*9/10],
		MaxMs:       sorted[n-1],
	}
}

// ReduceThroughput sums the rates of every session that reported one.
// Sessions without a parseable figure contribute zero, and ordering
// does not matter.
func ReduceThroughput(results []types.SessionResult) types.ThroughputStats {
	var total float64
	for _, r := range results {
		if r.OK {
			total += r.RateMbps
		}
	}
	return types.ThroughputStats{TotalRateMbps: total}
}
