package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/run"
	"github.com/saveenergy/netstrain/pkg/diagnostic"
	"github.com/saveenergy/netstrain/pkg/types"
)

// errDegraded marks a completed check whose grade came out D or F. The
// result is already printed when it surfaces; execute only maps it to a
// failing exit code.
var errDegraded = errors.New("connection graded degraded")

const (
	checkSchemaVersion = "1.0"

	// Shortened per-phase window. Long enough for the queues to fill and
	// the loaded medians to mean something, short enough for a preflight.
	checkDuration = 10 * time.Second
)

// checkResult is the structured output of netstrain check.
type checkResult struct {
	SchemaVersion    string                     `json:"schema_version"`
	RunID            string                     `json:"run_id"`
	IdleMedianMs     float64                    `json:"idle_median_ms"`
	DownloadMedianMs float64                    `json:"download_median_ms"`
	UploadMedianMs   float64                    `json:"upload_median_ms"`
	BloatMs          float64                    `json:"bloat_ms"`
	DownloadMbps     float64                    `json:"download_mbps"`
	UploadMbps       float64                    `json:"upload_mbps"`
	WorstLossPercent float64                    `json:"worst_loss_percent"`
	Interpretation   *diagnostic.Interpretation `json:"interpretation"`
	DurationMs       int64                      `json:"duration_ms"`
}

// discardReporter swallows the per-phase rendering; check works from
// the returned reports instead.
type discardReporter struct{}

func (discardReporter) Render(types.PhaseReport) error { return nil }

func newCheckCmd(flags *rootFlags) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Quick graded bufferbloat check",
		Long: `check runs a shortened measurement over all three phases and grades
the result: how far latency rises once the link is saturated, plus
speed and loss ratings. Phase selection flags are ignored since the
grade needs the idle baseline and both loaded phases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logging.Setup(settings.Verbose)

			settings.Phases = types.AllPhases()
			if !cmd.Flags().Changed("time") {
				settings.Duration = checkDuration
			}

			var observer run.Observer
			if p := newProgress(cmd.ErrOrStderr(), settings.NoProgress); p != nil {
				observer = p.observe
				defer p.finish()
			}

			start := time.Now()
			reports, err := run.New(settings, discardReporter{}, observer).Run(cmd.Context())
			if err != nil {
				return err
			}

			result := buildCheckResult(reports)
			result.DurationMs = time.Since(start).Milliseconds()

			if jsonOut {
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(result); err != nil {
					return errors.Wrap(err, "encoding check result")
				}
			} else {
				printCheck(cmd.OutOrStdout(), result)
			}

			if result.Interpretation.Grade == "D" || result.Interpretation.Grade == "F" {
				return errDegraded
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

func buildCheckResult(reports []types.PhaseReport) *checkResult {
	result := &checkResult{SchemaVersion: checkSchemaVersion}

	var p diagnostic.Params
	for _, rep := range reports {
		result.RunID = rep.RunID
		if rep.Latency.LossPercent > p.WorstLossPercent {
			p.WorstLossPercent = rep.Latency.LossPercent
		}
		switch rep.Phase {
		case types.PhaseIdle:
			p.IdleMedianMs = rep.Latency.MedianMs
		case types.PhaseDownload:
			p.DownloadMedianMs = rep.Latency.MedianMs
			if rep.Throughput != nil {
				p.DownloadMbps = rep.Throughput.TotalRateMbps
			}
		case types.PhaseUpload:
			p.UploadMedianMs = rep.Latency.MedianMs
			if rep.Throughput != nil {
				p.UploadMbps = rep.Throughput.TotalRateMbps
			}
		}
	}

	result.IdleMedianMs = p.IdleMedianMs
	result.DownloadMedianMs = p.DownloadMedianMs
	result.UploadMedianMs = p.UploadMedianMs
	result.BloatMs = p.BloatMs()
	result.DownloadMbps = p.DownloadMbps
	result.UploadMbps = p.UploadMbps
	result.WorstLossPercent = p.WorstLossPercent
	result.Interpretation = diagnostic.Interpret(p)
	return result
}

func printCheck(w io.Writer, r *checkResult) {
	fmt.Fprintf(w, "Grade: %s - %s\n", r.Interpretation.Grade, r.Interpretation.Summary)
	fmt.Fprintf(w, "  Idle latency:   %.1f ms median\n", r.IdleMedianMs)
	fmt.Fprintf(w, "  Under download: %.1f ms median\n", r.DownloadMedianMs)
	fmt.Fprintf(w, "  Under upload:   %.1f ms median\n", r.UploadMedianMs)
	fmt.Fprintf(w, "  Loaded rise:    +%.1f ms\n", r.BloatMs)
	fmt.Fprintf(w, "  Download:       %.1f Mbps\n", r.DownloadMbps)
	fmt.Fprintf(w, "  Upload:         %.1f Mbps\n", r.UploadMbps)
	fmt.Fprintf(w, "  Loss:           %.2f%%\n", r.WorstLossPercent)
	if len(r.Interpretation.Concerns) > 0 {
		fmt.Fprintf(w, "  Concerns: %s\n", strings.Join(r.Interpretation.Concerns, ", "))
	}
}
