// Package diagnostic interprets measurement results into human and
// agent readable grades, ratings, and suitability assessments. The
// central figure is bufferbloat: how far the latency median rises when
// the link is saturated, compared against the idle baseline.
package diagnostic

import "fmt"

// Interpretation holds the semantic interpretation of a measurement.
type Interpretation struct {
	Grade         string   `json:"grade"`
	Summary       string   `json:"summary"`
	BloatRating   string   `json:"bloat_rating"`
	LatencyRating string   `json:"latency_rating"`
	SpeedRating   string   `json:"speed_rating"`
	LossRating    string   `json:"loss_rating"`
	SuitableFor   []string `json:"suitable_for"`
	Concerns      []string `json:"concerns"`
}

// Params are the raw figures to interpret, taken from the three phase
// reports. A zero median means the phase did not run or produced no
// valid samples; the affected ratings come back as "unknown".
type Params struct {
	IdleMedianMs     float64
	DownloadMedianMs float64
	UploadMedianMs   float64
	DownloadMbps     float64
	UploadMbps       float64
	WorstLossPercent float64
}

// BloatMs is the latency increase under load: the worse of the two
// loaded medians minus the idle baseline, floored at zero.
func (p Params) BloatMs() float64 {
	loaded := p.DownloadMedianMs
	if p.UploadMedianMs > loaded {
		loaded = p.UploadMedianMs
	}
	if p.IdleMedianMs <= 0 || loaded <= 0 {
		return 0
	}
	if bloat := loaded - p.IdleMedianMs; bloat > 0 {
		return bloat
	}
	return 0
}

// Interpret produces a diagnostic Interpretation from raw figures.
func Interpret(p Params) *Interpretation {
	interp := &Interpretation{
		SuitableFor: []string{},
		Concerns:    []string{},
	}

	interp.BloatRating = rateBloat(p)
	interp.LatencyRating = rateLatency(p.IdleMedianMs)
	interp.SpeedRating = rateSpeed(p.DownloadMbps, p.UploadMbps)
	interp.LossRating = rateLoss(p.WorstLossPercent)

	interp.SuitableFor = suitability(p)
	interp.Concerns = concerns(p)

	interp.Grade = computeGrade(interp)
	interp.Summary = buildSummary(interp.Grade, p)

	return interp
}

func rateBloat(p Params) string {
	if p.IdleMedianMs <= 0 || (p.DownloadMedianMs <= 0 && p.UploadMedianMs <= 0) {
		return "unknown"
	}
	switch bloat := p.BloatMs(); {
	case bloat <= 5:
		return "excellent"
	case bloat <= 30:
		return "good"
	case bloat <= 100:
		return "fair"
	default:
		return "poor"
	}
}

func rateLatency(ms float64) string {
	switch {
	case ms <= 0:
		return "unknown"
	case ms <= 20:
		return "excellent"
	case ms <= 50:
		return "good"
	case ms <= 100:
		return "fair"
	default:
		return "poor"
	}
}

func rateSpeed(downMbps, upMbps float64) string {
	// Use whichever is available; prefer download
	speed := downMbps
	if speed <= 0 {
		speed = upMbps
	}
	switch {
	case speed <= 0:
		return "unknown"
	case speed >= 100:
		return "fast"
	case speed >= 25:
		return "good"
	case speed >= 5:
		return "moderate"
	default:
		return "slow"
	}
}

func rateLoss(pct float64) string {
	switch {
	case pct < 0:
		return "unknown"
	case pct > 2:
		return "unstable"
	case pct > 0.5:
		return "degraded"
	default:
		return "stable"
	}
}

func suitability(p Params) []string {
	s := []string{}
	bloat := p.BloatMs()

	// Browsing: 1+ Mbps either way, idle latency < 200ms
	if (p.DownloadMbps >= 1 || p.UploadMbps >= 1) && p.IdleMedianMs > 0 && p.IdleMedianMs < 200 {
		s = append(s, "web_browsing")
	}

	// Calls live or die on latency under load, not raw speed
	if p.DownloadMbps >= 5 && p.UploadMbps >= 2 && p.IdleMedianMs < 100 && bloat < 30 {
		s = append(s, "video_conferencing")
	}

	if p.DownloadMbps >= 25 {
		s = append(s, "streaming_4k")
	} else if p.DownloadMbps >= 5 {
		s = append(s, "streaming_hd")
	}

	// Gaming: low idle latency, minimal bloat, loss under 1%
	if p.IdleMedianMs > 0 && p.IdleMedianMs < 50 && bloat < 15 && p.WorstLossPercent < 1 {
		s = append(s, "gaming")
	}

	if p.DownloadMbps >= 50 || p.UploadMbps >= 50 {
		s = append(s, "large_transfers")
	}

	return s
}

func concerns(p Params) []string {
	c := []string{}

	switch bloat := p.BloatMs(); {
	case bloat > 100:
		c = append(c, "severe_bufferbloat")
	case bloat > 30:
		c = append(c, "moderate_bufferbloat")
	}
	if p.IdleMedianMs > 100 {
		c = append(c, "high_idle_latency")
	}
	if p.WorstLossPercent > 1 {
		c = append(c, "packet_loss")
	}
	if p.DownloadMbps > 0 && p.DownloadMbps < 5 {
		c = append(c, "slow_download")
	}
	if p.UploadMbps > 0 && p.UploadMbps < 2 {
		c = append(c, "slow_upload")
	}

	return c
}

var ratingScore = map[string]int{
	"excellent": 4,
	"fast":      4,
	"stable":    4,
	"good":      3,
	"fair":      2,
	"moderate":  2,
	"degraded":  1,
	"poor":      0,
	"slow":      0,
	"unstable":  0,
	"unknown":   2, // neutral default
}

// computeGrade weights bufferbloat double: it is the figure this tool
// exists to expose.
func computeGrade(i *Interpretation) string {
	score := 2*ratingScore[i.BloatRating] +
		ratingScore[i.LatencyRating] +
		ratingScore[i.SpeedRating] +
		ratingScore[i.LossRating]
	// Max score = 20 (2*4+4+4+4)
	switch {
	case score >= 18:
		return "A"
	case score >= 14:
		return "B"
	case score >= 9:
		return "C"
	case score >= 5:
		return "D"
	default:
		return "F"
	}
}

func buildSummary(grade string, p Params) string {
	gradeDesc := map[string]string{
		"A": "Excellent",
		"B": "Good",
		"C": "Fair",
		"D": "Poor",
		"F": "Very poor",
	}

	desc := gradeDesc[grade]

	parts := []string{}
	if p.DownloadMbps > 0 {
		parts = append(parts, fmt.Sprintf("%.0f Mbps down", p.DownloadMbps))
	}
	if p.UploadMbps > 0 {
		parts = append(parts, fmt.Sprintf("%.0f Mbps up", p.UploadMbps))
	}
	if p.IdleMedianMs > 0 {
		parts = append(parts, fmt.Sprintf("%.0fms idle latency", p.IdleMedianMs))
	}
	if bloat := p.BloatMs(); bloat > 0 {
		parts = append(parts, fmt.Sprintf("+%.0fms under load", bloat))
	}

	summary := desc + " connection"
	if len(parts) > 0 {
		summary += ": "
		for i, part := range parts {
			if i > 0 {
				summary += ", "
			}
			summary += part
		}
	}

	return summary
}
