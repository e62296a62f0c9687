// Package session launches a phase's parallel transfer subprocesses and
// collects the single rate figure each one reports.
package session

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/pkg/types"
)

// Config describes one phase's worth of transfer sessions.
type Config struct {
	Hosts     []string
	PerHost   int
	Direction types.Direction
	Duration  time.Duration
	IPVersion int

	// Command is the transfer client binary, netperf compatible: it
	// must accept -H/-t/-l/-v/-P and print one rate in Mbps.
	Command string
}

// Runner fans out Hosts x PerHost subprocesses without waiting between
// launches and joins every one of them before returning. A stuck
// session therefore delays the whole phase; that is intended, the total
// is only meaningful while all sessions run concurrently.
type Runner struct {
	cfg Config
	log zerolog.Logger
}

type proc struct {
	host   string
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func New(cfg Config) *Runner {
	return &Runner{
		cfg: cfg,
		log: logging.Component("session").With().Str("direction", string(cfg.Direction)).Logger(),
	}
}

// Run launches all sessions and blocks until every subprocess has been
// reaped. The returned error is a launch failure or the context's
// cancellation cause; sessions that merely failed to report a rate are
// returned with OK=false instead.
func (r *Runner) Run(ctx context.Context) ([]types.SessionResult, error) {
	procs := make([]*proc, 0, len(r.cfg.Hosts)*r.cfg.PerHost)
	for _, host := range r.cfg.Hosts {
		for i := 0; i < r.cfg.PerHost; i++ {
			p := &proc{host: host}
			p.cmd = exec.Command(r.cfg.Command, sessionArgs(r.cfg, host)...)
			p.cmd.Stdout = &p.stdout
			p.cmd.Stderr = &p.stderr
			procs = append(procs, p)
		}
	}

	for i, p := range procs {
		if err := p.cmd.Start(); err != nil {
			// Roll back the sessions already running before
			// reporting the phase as unlaunchable.
			killProcs(procs[:i])
			for _, started := range procs[:i] {
				_ = started.cmd.Wait()
			}
			return nil, types.ErrLaunchFailure(r.cfg.Command+" "+p.host, err)
		}
	}
	r.log.Debug().Int("sessions", len(procs)).Msg("sessions launched")

	joined := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			killProcs(procs)
		case <-joined:
		}
	}()

	var wg sync.WaitGroup
	results := make([]types.SessionResult, len(procs))
	for i, p := range procs {
		wg.Add(1)
		go func(i int, p *proc) {
			defer wg.Done()
			results[i] = r.collect(p)
		}(i, p)
	}
	wg.Wait()
	close(joined)

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) collect(p *proc) types.SessionResult {
	waitErr := p.cmd.Wait()
	result := types.SessionResult{Host: p.host, Direction: r.cfg.Direction}

	rate, ok := parseRate(p.stdout.String())
	if waitErr != nil || !ok {
		r.log.Debug().
			Str("host", p.host).
			AnErr("wait", waitErr).
			Str("stderr", strings.TrimSpace(p.stderr.String())).
			Msg("session reported no rate")
		return result
	}

	result.RateMbps = rate
	result.OK = true
	return result
}

func killProcs(procs []*proc) {
	for _, p := range procs {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	}
}

func sessionArgs(cfg Config, host string) []string {
	test := "TCP_MAERTS"
	if cfg.Direction == types.DirectionUpload {
		test = "TCP_STREAM"
	}
	family := "-4"
	if cfg.IPVersion == 6 {
		family = "-6"
	}
	return []string{
		"-H", host,
		family,
		"-t", test,
		"-l", strconv.Itoa(int(cfg.Duration.Seconds())),
		"-v", "0",
		"-P", "0",
	}
}

// parseRate extracts the rate from a session's output. With -v 0 -P 0
// the client prints a single number, but any leading noise is skipped
// by taking the first parseable field.
func parseRate(out string) (float64, bool) {
	for _, field := range strings.Fields(out) {
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
