package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveenergy/netstrain/pkg/types"
)

func checkReports(runID string) []types.PhaseReport {
	idle := types.PhaseReport{
		RunID: runID, Phase: types.PhaseIdle,
		Latency: types.LatencyStats{Count: 50, MedianMs: 10},
	}
	download := types.PhaseReport{
		RunID: runID, Phase: types.PhaseDownload,
		Latency:    types.LatencyStats{Count: 50, MedianMs: 80, LossPercent: 2},
		Throughput: &types.ThroughputStats{TotalRateMbps: 100},
	}
	upload := types.PhaseReport{
		RunID: runID, Phase: types.PhaseUpload,
		Latency:    types.LatencyStats{Count: 50, MedianMs: 40, LossPercent: 1},
		Throughput: &types.ThroughputStats{TotalRateMbps: 20},
	}
	return []types.PhaseReport{idle, download, upload}
}

func TestBuildCheckResult(t *testing.T) {
	assert := assert.New(t)

	result := buildCheckResult(checkReports("run-check"))

	assert.Equal("run-check", result.RunID)
	assert.InDelta(10, result.IdleMedianMs, 0.001)
	assert.InDelta(80, result.DownloadMedianMs, 0.001)
	assert.InDelta(40, result.UploadMedianMs, 0.001)
	assert.InDelta(70, result.BloatMs, 0.001)
	assert.InDelta(100, result.DownloadMbps, 0.001)
	assert.InDelta(20, result.UploadMbps, 0.001)
	assert.InDelta(2, result.WorstLossPercent, 0.001)
	require.NotNil(t, result.Interpretation)
	assert.Equal("C", result.Interpretation.Grade)
}

func TestCheckCommandGradesRun(t *testing.T) {
	assert := assert.New(t)
	stubCommands(t, "sleep 0.2\necho \"  42.10\"\n")

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"check", "-t", "1", "-n", "1",
		"-H", "stub.test", "-p", "stub.test",
		"--interval", "0.05", "--no-progress",
	})

	require.NoError(t, root.ExecuteContext(context.Background()))

	got := out.String()
	assert.Contains(got, "Grade: A")
	assert.Contains(got, "Idle latency:")
	assert.Contains(got, "Download:       42.1 Mbps")
}

func TestCheckCommandJSON(t *testing.T) {
	assert := assert.New(t)
	stubCommands(t, "echo \"  42.10\"\n")

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"check", "--json", "-t", "1", "-n", "1",
		"-H", "stub.test", "-p", "stub.test",
		"--interval", "0.05", "--no-progress",
	})

	require.NoError(t, root.ExecuteContext(context.Background()))

	var result checkResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(checkSchemaVersion, result.SchemaVersion)
	assert.NotEmpty(result.RunID)
	require.NotNil(t, result.Interpretation)
	assert.NotEmpty(result.Interpretation.Grade)
}

func TestExecuteDegradedCheckExitsNonZero(t *testing.T) {
	root := &cobra.Command{
		Use:           "x",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return errDegraded
		},
	}
	var errOut bytes.Buffer
	root.SetErr(&errOut)

	assert.Equal(t, exitFailure, execute(context.Background(), root, nil))
	assert.Empty(t, errOut.String(), "check already printed its result")
}
