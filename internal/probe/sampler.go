// Package probe drives a continuous echo-probe subprocess (ping or
// ping6) and collects one latency sample or drop per line it prints.
package probe

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/pkg/types"
)

// Config describes one sampler run. Command is the echo-probe binary;
// the remaining arguments are derived from Host and Interval.
type Config struct {
	Host     string
	Command  string
	Interval time.Duration
}

// Sampler owns a single echo-probe subprocess. The subprocess has no
// duration limit of its own; it runs until Stop kills and reaps it.
type Sampler struct {
	cfg Config
	log zerolog.Logger

	cmd    *exec.Cmd
	stderr bytes.Buffer

	mu      sync.Mutex
	samples []types.LatencySample

	exited  chan struct{}
	waitErr error
	killed  atomic.Bool

	stopOnce sync.Once
}

func New(cfg Config) *Sampler {
	return &Sampler{
		cfg:    cfg,
		log:    logging.Component("probe").With().Str("host", cfg.Host).Logger(),
		exited: make(chan struct{}),
	}
}

// Start spawns the probe subprocess and begins consuming its output.
// It returns a launch failure if the subprocess cannot be started; the
// context cancels the subprocess if it fires before Stop does.
func (s *Sampler) Start(ctx context.Context) error {
	args := probeArgs(s.cfg)
	cmd := exec.CommandContext(ctx, s.cfg.Command, args...)
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "probe stdout pipe")
	}

	if err := cmd.Start(); err != nil {
		return types.ErrLaunchFailure(s.cfg.Command+" "+s.cfg.Host, err)
	}
	s.cmd = cmd
	s.log.Debug().Str("command", s.cfg.Command).Strs("args", args).Msg("probe started")

	go s.readLoop(ctx, stdout)
	return nil
}

func (s *Sampler) readLoop(ctx context.Context, stdout io.ReadCloser) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		sample, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		s.mu.Lock()
		s.samples = append(s.samples, sample)
		s.mu.Unlock()
	}

	err := s.cmd.Wait()
	if err != nil && !s.killed.Load() && ctx.Err() == nil {
		if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
			err = errors.Wrap(err, detail)
		}
		s.waitErr = types.ErrProbeExited(s.cfg.Host, err)
		s.log.Debug().Err(err).Msg("probe exited on its own")
	}
	close(s.exited)
}

// Stop kills the probe subprocess, waits until it has been reaped, and
// returns the samples collected so far. Idempotent; safe to call after
// the subprocess has already exited.
func (s *Sampler) Stop() []types.LatencySample {
	s.stopOnce.Do(func() {
		s.killed.Store(true)
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
	})
	if s.cmd != nil {
		<-s.exited
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.LatencySample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Exited is closed once the subprocess has been reaped, whether it was
// killed or died on its own.
func (s *Sampler) Exited() <-chan struct{} { return s.exited }

// Err reports the failure of a probe subprocess that died before Stop
// was called. Nil while the subprocess is still running, after a kill,
// or after a clean exit.
func (s *Sampler) Err() error {
	select {
	case <-s.exited:
		return s.waitErr
	default:
		return nil
	}
}

// Count returns the number of samples collected so far.
func (s *Sampler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func probeArgs(cfg Config) []string {
	// -n skips reverse DNS per probe, -O makes iputils print a line
	// for unanswered probes instead of staying silent.
	args := []string{"-n", "-O"}
	if cfg.Interval > 0 {
		args = append(args, "-i", strconv.FormatFloat(cfg.Interval.Seconds(), 'f', -1, 64))
	}
	return append(args, cfg.Host)
}
