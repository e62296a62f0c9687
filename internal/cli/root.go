// Package cli wires the cobra command tree for the netstrain binary.
// The root command runs a measurement; serve and mcp expose the same
// engine over HTTP and MCP stdio.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/saveenergy/netstrain/internal/config"
	"github.com/saveenergy/netstrain/internal/logging"
	"github.com/saveenergy/netstrain/internal/report"
	"github.com/saveenergy/netstrain/internal/run"
	"github.com/saveenergy/netstrain/pkg/types"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Execute runs the command tree and maps errors to the process exit
// code. An interrupt cancels the run context; subprocesses are reaped
// before the error surfaces here.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, NewRootCmd(version), os.Args[1:])
}

func execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		stderr := root.ErrOrStderr()
		switch {
		case errors.Is(err, errDegraded):
			// The check result is already printed; only the exit code changes.
		case types.IsContextError(err):
			fmt.Fprintln(stderr, "netstrain: interrupted, no report for the cancelled phase")
		case types.IsInvalidConfig(err):
			fmt.Fprintf(stderr, "netstrain: error: %v\n", err)
			fmt.Fprintln(stderr, root.UsageString())
		default:
			fmt.Fprintf(stderr, "netstrain: error: %v\n", err)
		}
		return exitFailure
	}
	return exitSuccess
}

func NewRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "netstrain",
		Short: "Measure network latency under load",
		Long: `netstrain measures how a link's latency behaves while parallel TCP
transfer sessions saturate it, phase by phase: idle, download, upload.
It drives netperf for throughput and ping for latency, then reduces
the samples into per-phase statistics.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := flags.load(cmd)
			if err != nil {
				return err
			}
			logging.Setup(settings.Verbose)
			return measure(cmd.Context(), settings, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags.AddFlags(cmd)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return types.ErrInvalidConfig(err.Error(), nil)
	})

	cmd.AddCommand(
		newCheckCmd(flags),
		newServeCmd(flags, version),
		newMCPCmd(flags, version),
		newVersionCmd(version),
	)
	return cmd
}

// measure runs one measurement and renders each phase report to stdout.
func measure(ctx context.Context, settings types.Settings, stdout, stderr io.Writer) error {
	reporter, err := report.New(settings.Format, stdout)
	if err != nil {
		return types.ErrInvalidConfig(err.Error(), nil)
	}

	var observer run.Observer
	if p := newProgress(stderr, settings.NoProgress); p != nil {
		observer = p.observe
		defer p.finish()
	}

	_, err = run.New(settings, reporter, observer).Run(ctx)
	return err
}

// rootFlags carries the measurement flags shared by the root command
// and its subcommands. overrides only forwards the explicitly set ones
// so the config file and environment layers keep working.
type rootFlags struct {
	IPv4       bool
	IPv6       bool
	Hosts      string
	Time       int
	Ping       string
	Number     int
	Format     string
	Idle       bool
	Download   bool
	Upload     bool
	Interval   float64
	ConfigPath string
	Verbose    bool
	NoProgress bool
}

func (f *rootFlags) AddFlags(cmd *cobra.Command) {
	fl := cmd.PersistentFlags()
	fl.BoolVarP(&f.IPv4, "ipv4", "4", false, "measure over IPv4 (default)")
	fl.BoolVarP(&f.IPv6, "ipv6", "6", false, "measure over IPv6")
	fl.StringVarP(&f.Hosts, "hosts", "H", config.DefaultHost, "comma-separated transfer test hosts")
	fl.IntVarP(&f.Time, "time", "t", 60, "seconds per phase")
	fl.StringVarP(&f.Ping, "ping", "p", config.DefaultPingHost, "latency probe target host")
	fl.IntVarP(&f.Number, "number", "n", 5, "parallel transfer sessions per host")
	fl.StringVarP(&f.Format, "format", "o", report.FormatPlain, "report format: plain, yaml or prometheus")
	fl.BoolVar(&f.Idle, "idle", false, "run the idle phase")
	fl.BoolVar(&f.Download, "download", false, "run the download phase")
	fl.BoolVar(&f.Upload, "upload", false, "run the upload phase")
	fl.Float64Var(&f.Interval, "interval", 0.2, "seconds between latency probes")
	fl.StringVar(&f.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/netstrain/config.yaml)")
	fl.BoolVarP(&f.Verbose, "verbose", "v", false, "enable debug logging")
	fl.BoolVar(&f.NoProgress, "no-progress", false, "disable the progress line")
}

func (f *rootFlags) load(cmd *cobra.Command) (types.Settings, error) {
	ov, err := f.overrides(cmd.Flags())
	if err != nil {
		return types.Settings{}, err
	}
	return config.Load(f.ConfigPath, ov)
}

func (f *rootFlags) overrides(fl *pflag.FlagSet) (map[string]any, error) {
	if f.IPv4 && f.IPv6 {
		return nil, types.ErrInvalidConfig("-4 and -6 are mutually exclusive", nil)
	}

	ov := make(map[string]any)
	if f.IPv6 {
		ov[config.KeyIPVersion] = 6
	} else if f.IPv4 {
		ov[config.KeyIPVersion] = 4
	}
	if fl.Changed("hosts") {
		ov[config.KeyHosts] = f.Hosts
	}
	if fl.Changed("time") {
		ov[config.KeyDuration] = f.Time
	}
	if fl.Changed("ping") {
		ov[config.KeyPingHost] = f.Ping
	}
	if fl.Changed("number") {
		ov[config.KeySessions] = f.Number
	}
	if fl.Changed("format") {
		ov[config.KeyFormat] = f.Format
	}
	if phases := f.phaseSelection(); len(phases) > 0 {
		ov[config.KeyPhases] = phases
	}
	if fl.Changed("interval") {
		ov[config.KeyProbeInterval] = f.Interval
	}
	if f.Verbose {
		ov[config.KeyVerbose] = true
	}
	if f.NoProgress {
		ov[config.KeyNoProgress] = true
	}
	return ov, nil
}

func (f *rootFlags) phaseSelection() []string {
	var phases []string
	if f.Idle {
		phases = append(phases, string(types.PhaseIdle))
	}
	if f.Download {
		phases = append(phases, string(types.PhaseDownload))
	}
	if f.Upload {
		phases = append(phases, string(types.PhaseUpload))
	}
	return phases
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the netstrain version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "netstrain %s\n", version)
		},
	}
}
