package report

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/saveenergy/netstrain/pkg/types"
)

// YAMLReporter writes each phase as a single-key mapping named after
// the phase. Rendering several phases to the same writer composes into
// one valid document with one key per phase.
type YAMLReporter struct {
	w io.Writer
}

type yamlPhase struct {
	SpeedMbps *float64 `yaml:"speed_mbps,omitempty"`
	PingCount int      `yaml:"ping_count"`
	PingLoss  float64  `yaml:"ping_loss_percent"`
	PingMs    yamlPing `yaml:"ping_ms"`
}

type yamlPing struct {
	Min    float64 `yaml:"min"`
	P10    float64 `yaml:"p10"`
	Median float64 `yaml:"median"`
	Avg    float64 `yaml:"avg"`
	P90    float64 `yaml:"p90"`
	Max    float64 `yaml:"max"`
}

func (r *YAMLReporter) Render(rep types.PhaseReport) error {
	phase := yamlPhase{
		PingCount: rep.Latency.Count,
		PingLoss:  rep.Latency.LossPercent,
		PingMs: yamlPing{
			Min:    rep.Latency.MinMs,
			P10:    rep.Latency.P10Ms,
			Median: rep.Latency.MedianMs,
			Avg:    rep.Latency.AvgMs,
			P90:    rep.Latency.P90Ms,
			Max:    rep.Latency.MaxMs,
		},
	}
	if rep.Throughput != nil {
		speed := rep.Throughput.TotalRateMbps
		phase.SpeedMbps = &speed
	}

	data, err := yaml.Marshal(map[string]yamlPhase{string(rep.Phase): phase})
	if err != nil {
		return err
	}
	_, err = r.w.Write(data)
	return err
}
