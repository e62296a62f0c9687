package types

import "time"

// LatencyStats is the reduced view of a phase's latency samples. All
// figures are milliseconds except Count and LossPercent. Count is at
// least 1 even when no probe succeeded; the order statistics are then
// the degenerate zero value while LossPercent still reflects the real
// probe outcome.
type LatencyStats struct {
	Count       int     `json:"count"`
	LossPercent float64 `json:"loss_percent"`
	MinMs       float64 `json:"min_ms"`
	P10Ms       float64 `json:"p10_ms"`
	MedianMs    float64 `json:"median_ms"`
	AvgMs       float64 `json:"avg_ms"`
	P90Ms       float64 `json:"p90_ms"`
	MaxMs       float64 `json:"max_ms"`
}

// ThroughputStats aggregates a phase's transfer sessions. Present only
// for download and upload phases.
type ThroughputStats struct {
	TotalRateMbps float64 `json:"total_rate_mbps"`
}

// PhaseReport is the unit handed to a Reporter once a phase has been
// measured and reduced.
type PhaseReport struct {
	RunID      string           `json:"run_id"`
	Phase      Phase            `json:"phase"`
	Throughput *ThroughputStats `json:"throughput,omitempty"`
	Latency    LatencyStats     `json:"latency"`
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
}
