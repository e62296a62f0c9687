package run

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveenergy/netstrain/pkg/types"
)

type captureReporter struct {
	mu      sync.Mutex
	reports []types.PhaseReport
}

func (c *captureReporter) Render(rep types.PhaseReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, rep)
	return nil
}

func (c *captureReporter) rendered() []types.PhaseReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.PhaseReport, len(c.reports))
	copy(out, c.reports)
	return out
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func pingForever(t *testing.T) string {
	return writeScript(t, "ping", `while :; do
  echo "64 bytes from 127.0.0.1: icmp_seq=1 ttl=64 time=12.5 ms"
  sleep 0.05
done
`)
}

func testSettings(t *testing.T, phases ...types.Phase) types.Settings {
	return types.Settings{
		IPVersion:     4,
		Hosts:         []string{"alpha.test", "beta.test"},
		PingHost:      "ping.test",
		Duration:      400 * time.Millisecond,
		Sessions:      2,
		Phases:        phases,
		ProbeInterval: 50 * time.Millisecond,
		NetperfCmd:    writeScript(t, "netperf", "sleep 0.2\necho \"  93.21\"\n"),
		PingCmd:       pingForever(t),
	}
}

func TestControllerSinglePhaseSubset(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseUpload)
	rec := &captureReporter{}

	reports, err := New(settings, rec, nil).Run(context.Background())
	require.NoError(err)
	require.Len(reports, 1)
	require.Len(rec.rendered(), 1)

	rep := reports[0]
	assert.Equal(types.PhaseUpload, rep.Phase)
	assert.NotEmpty(rep.RunID)
	require.NotNil(rep.Throughput)
	// Two hosts, two sessions each, 93.21 Mbps apiece.
	assert.InDelta(372.84, rep.Throughput.TotalRateMbps, 0.001)
	assert.Greater(rep.Latency.Count, 0)
	assert.Zero(rep.Latency.LossPercent)
	assert.True(rep.EndTime.After(rep.StartTime))
}

func TestControllerRunsPhasesInOrder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseIdle, types.PhaseDownload, types.PhaseUpload)
	rec := &captureReporter{}

	reports, err := New(settings, rec, nil).Run(context.Background())
	require.NoError(err)
	require.Len(reports, 3)

	assert.Equal(types.PhaseIdle, reports[0].Phase)
	assert.Equal(types.PhaseDownload, reports[1].Phase)
	assert.Equal(types.PhaseUpload, reports[2].Phase)

	assert.Nil(reports[0].Throughput)
	require.NotNil(reports[1].Throughput)
	require.NotNil(reports[2].Throughput)
	assert.InDelta(372.84, reports[1].Throughput.TotalRateMbps, 0.001)

	for _, rep := range reports {
		assert.Equal(reports[0].RunID, rep.RunID)
	}
}

func TestControllerEmitsEvents(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseIdle)

	var mu sync.Mutex
	var events []Event
	observer := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}

	_, err := New(settings, &captureReporter{}, observer).Run(context.Background())
	require.NoError(err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(events)
	assert.Equal(EventRunStarted, events[0].Type)
	assert.Equal(EventRunCompleted, events[len(events)-1].Type)

	var started, reported bool
	for _, ev := range events {
		switch ev.Type {
		case EventPhaseStarted:
			started = true
			assert.Equal(types.PhaseIdle, ev.Phase)
		case EventPhaseReported:
			reported = true
			require.NotNil(ev.Report)
			assert.Equal(types.PhaseIdle, ev.Report.Phase)
		}
		assert.Equal(events[0].RunID, ev.RunID)
	}
	assert.True(started)
	assert.True(reported)
}

func TestControllerCancellationEmitsNoReport(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseDownload, types.PhaseUpload)
	settings.Duration = 30 * time.Second
	// exec replaces the shell so the kill reaches the process holding
	// the stdout pipe.
	settings.NetperfCmd = writeScript(t, "netperf", "exec sleep 30\n")
	rec := &captureReporter{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	startedAt := time.Now()
	reports, err := New(settings, rec, nil).Run(ctx)
	require.ErrorIs(err, context.Canceled)
	assert.Empty(reports)
	assert.Empty(rec.rendered())
	assert.Less(time.Since(startedAt), 5*time.Second)
}

func TestControllerProbeLaunchFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseIdle)
	settings.PingCmd = filepath.Join(t.TempDir(), "missing-ping")
	rec := &captureReporter{}

	reports, err := New(settings, rec, nil).Run(context.Background())
	require.Error(err)
	assert.True(types.IsLaunchFailure(err))
	assert.Empty(reports)
	assert.Empty(rec.rendered())
}

func TestControllerProbeEarlyExitAbortsPhase(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseIdle)
	settings.Duration = 10 * time.Second
	settings.PingCmd = writeScript(t, "ping", "echo \"ping: unknown.test: Name or service not known\" >&2\nexit 2\n")
	rec := &captureReporter{}

	startedAt := time.Now()
	reports, err := New(settings, rec, nil).Run(context.Background())
	require.Error(err)
	assert.True(types.IsLaunchFailure(err))
	assert.Empty(reports)
	assert.Empty(rec.rendered())
	// The phase must notice the dead probe without waiting out the
	// full duration.
	assert.Less(time.Since(startedAt), 5*time.Second)
}

func TestControllerAbsorbsSessionFailures(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	settings := testSettings(t, types.PhaseDownload)
	settings.Hosts = []string{"good.test", "bad.test"}
	settings.Sessions = 1
	settings.NetperfCmd = writeScript(t, "netperf", `host="$2"
if [ "$host" = "bad.test" ]; then
  echo "establish control: are you sure there is a netserver listening on $host" >&2
  exit 1
fi
echo "  81.50"
`)
	rec := &captureReporter{}

	reports, err := New(settings, rec, nil).Run(context.Background())
	require.NoError(err)
	require.Len(reports, 1)
	require.NotNil(reports[0].Throughput)
	assert.InDelta(81.50, reports[0].Throughput.TotalRateMbps, 0.001)
}
