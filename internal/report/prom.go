package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/saveenergy/netstrain/pkg/types"
)

// PrometheusReporter writes flat exposition-style lines, one metric per
// line, with the phase folded into the metric name. The latency order
// statistics become a quantile-labelled series in summary style.
type PrometheusReporter struct {
	w io.Writer
}

func (r *PrometheusReporter) Render(rep types.PhaseReport) error {
	var b strings.Builder
	prefix := "netstrain_" + string(rep.Phase)

	if rep.Throughput != nil {
		fmt.Fprintf(&b, "%s_speed_mbps %g\n", prefix, rep.Throughput.TotalRateMbps)
	}

	lat := rep.Latency
	fmt.Fprintf(&b, "%s_ping_count %d\n", prefix, lat.Count)
	fmt.Fprintf(&b, "%s_ping_loss_percent %g\n", prefix, lat.LossPercent)
	fmt.Fprintf(&b, "%s_ping_ms_avg %g\n", prefix, lat.AvgMs)
	for _, q := range []struct {
		label string
		value float64
	}{
		{"0", lat.MinMs},
		{"0.1", lat.P10Ms},
		{"0.5", lat.MedianMs},
		{"0.9", lat.P90Ms},
		{"1", lat.MaxMs},
	} {
		fmt.Fprintf(&b, "%s_ping_ms{quantile=%q} %g\n", prefix, q.label, q.value)
	}

	_, err := io.WriteString(r.w, b.String())
	return err
}
