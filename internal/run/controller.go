// Package run sequences the measurement phases, driving the latency
// sampler and the session runner through each one and reducing their
// output into phase reports.
package run

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/probe"
	"github.com/saveenergy/netstrain/internal/report"
	"github.com/saveenergy/netstrain/internal/session"
	"github.com/saveenergy/netstrain/internal/stats"
	"github.com/saveenergy/netstrain/pkg/types"
)

type EventType string

const (
	EventRunStarted    EventType = "run_started"
	EventPhaseStarted  EventType = "phase_started"
	EventTick          EventType = "tick"
	EventPhaseReported EventType = "phase_reported"
	EventRunCompleted  EventType = "run_completed"
)

// Event is a progress notification emitted while a run advances.
type Event struct {
	Type     EventType          `json:"type"`
	RunID    string             `json:"run_id"`
	Phase    types.Phase        `json:"phase,omitempty"`
	Elapsed  float64            `json:"elapsed_seconds,omitempty"`
	Duration float64            `json:"duration_seconds,omitempty"`
	Samples  int                `json:"samples,omitempty"`
	Report   *types.PhaseReport `json:"report,omitempty"`
	Time     int64              `json:"time"`
}

// Observer receives progress events. Calls arrive from the controller
// goroutine and must not block.
type Observer func(Event)

// Controller owns one measurement run over the selected phases, always
// in idle, download, upload order. Each phase is self-contained; no
// state crosses from one to the next.
type Controller struct {
	settings types.Settings
	reporter report.Reporter
	observer Observer
	log      zerolog.Logger
}

func New(settings types.Settings, reporter report.Reporter, observer Observer) *Controller {
	return &Controller{
		settings: settings,
		reporter: reporter,
		observer: observer,
		log:      logging.Component("run"),
	}
}

// Run executes the selected phases and renders one report per phase.
// On cancellation all in-flight subprocesses are killed and reaped, the
// interrupted phase emits no report, and the context's error is
// returned.
func (c *Controller) Run(ctx context.Context) ([]types.PhaseReport, error) {
	runID := uuid.NewString()
	log := c.log.With().Str("run_id", runID).Logger()
	log.Info().
		Strs("hosts", c.settings.Hosts).
		Str("ping_host", c.settings.PingHost).
		Dur("duration", c.settings.Duration).
		Int("sessions", c.settings.Sessions).
		Msg("run starting")

	c.emit(Event{Type: EventRunStarted, RunID: runID})

	reports := make([]types.PhaseReport, 0, len(c.settings.Phases))
	for _, phase := range c.settings.Phases {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		rep, err := c.runPhase(ctx, runID, phase)
		if err != nil {
			log.Debug().Err(err).Str("phase", string(phase)).Msg("phase aborted")
			return reports, err
		}

		if err := c.reporter.Render(rep); err != nil {
			return reports, err
		}
		c.emit(Event{Type: EventPhaseReported, RunID: runID, Phase: phase, Report: &rep})
		reports = append(reports, rep)
	}

	c.emit(Event{Type: EventRunCompleted, RunID: runID})
	log.Info().Int("phases", len(reports)).Msg("run complete")
	return reports, nil
}

func (c *Controller) runPhase(ctx context.Context, runID string, phase types.Phase) (types.PhaseReport, error) {
	start := time.Now()
	c.emit(Event{Type: EventPhaseStarted, RunID: runID, Phase: phase, Duration: c.settings.Duration.Seconds()})

	sampler := probe.New(probe.Config{
		Host:     c.settings.PingHost,
		Command:  c.settings.ProbeCommand(),
		Interval: c.settings.ProbeInterval,
	})
	if err := sampler.Start(ctx); err != nil {
		return types.PhaseReport{}, err
	}

	phaseDone := make(chan struct{})
	go c.tickLoop(ctx, runID, phase, start, sampler, phaseDone)
	defer close(phaseDone)

	var results []types.SessionResult
	if phase == types.PhaseIdle {
		select {
		case <-time.After(c.settings.Duration):
		case <-sampler.Exited():
		case <-ctx.Done():
			sampler.Stop()
			return types.PhaseReport{}, ctx.Err()
		}
	} else {
		runner := session.New(session.Config{
			Hosts:     c.settings.Hosts,
			PerHost:   c.settings.Sessions,
			Direction: phase.Direction(),
			Duration:  c.settings.Duration,
			IPVersion: c.settings.IPVersion,
			Command:   c.settings.NetperfCmd,
		})
		var err error
		results, err = runner.Run(ctx)
		if err != nil {
			sampler.Stop()
			return types.PhaseReport{}, err
		}
	}

	samples := sampler.Stop()
	if err := sampler.Err(); err != nil {
		// The probe died on its own mid-phase, which means there is
		// no latency record to report.
		return types.PhaseReport{}, err
	}

	rep := types.PhaseReport{
		RunID:     runID,
		Phase:     phase,
		Latency:   stats.ReduceLatency(samples),
		StartTime: start,
		EndTime:   time.Now(),
	}
	if phase != types.PhaseIdle {
		thr := stats.ReduceThroughput(results)
		rep.Throughput = &thr
	}
	return rep, nil
}

func (c *Controller) tickLoop(ctx context.Context, runID string, phase types.Phase, start time.Time, sampler *probe.Sampler, done <-chan struct{}) {
	if c.observer == nil {
		return
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.emit(Event{
				Type:     EventTick,
				RunID:    runID,
				Phase:    phase,
				Elapsed:  time.Since(start).Seconds(),
				Duration: c.settings.Duration.Seconds(),
				Samples:  sampler.Count(),
			})
		}
	}
}

func (c *Controller) emit(ev Event) {
	if c.observer == nil {
		return
	}
	ev.Time = time.Now().Unix()
	c.observer(ev)
}
