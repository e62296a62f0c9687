package report

import (
	"fmt"
	"io"

	"github.com/saveenergy/netstrain/pkg/types"
)

// PlainReporter writes a human-readable block per phase: the phase
// name, the summed rate when the phase had a transfer component, and
// the labeled latency figures.
type PlainReporter struct {
	w io.Writer
}

func (r *PlainReporter) Render(rep types.PhaseReport) error {
	if rep.Throughput != nil {
		if _, err := fmt.Fprintf(r.w, "%s: %.1f Mbps\n", rep.Phase.Title(), rep.Throughput.TotalRateMbps); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(r.w, "%s:\n", rep.Phase.Title()); err != nil {
			return err
		}
	}

	lat := rep.Latency
	_, err := fmt.Fprintf(r.w,
		"  Latency (msec, %d pings, %.2f%% loss):\n"+
			"      Min: %.2f\n"+
			"    10pct: %.2f\n"+
			"   Median: %.2f\n"+
			"      Avg: %.2f\n"+
			"    90pct: %.2f\n"+
			"      Max: %.2f\n",
		lat.Count, lat.LossPercent,
		lat.MinMs, lat.P10Ms, lat.MedianMs, lat.AvgMs, lat.P90Ms, lat.MaxMs)
	return err
}
