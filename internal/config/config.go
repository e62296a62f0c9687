// Package config resolves the run settings from four layers, lowest
// precedence first: built-in defaults, an optional YAML config file,
// NETSTRAIN_* environment variables, and explicit flag overrides. The
// result is frozen into a types.Settings value; nothing reads viper
// after Load returns.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/saveenergy/netstrain/internal/report"
	"github.com/saveenergy/netstrain/pkg/types"
)

// Keys name the configuration values across every layer. A flag
// override for --time lands on KeyDuration, the config file nests
// probe.interval under a probe block, and the environment flattens
// dots to underscores (NETSTRAIN_PROBE_INTERVAL).
const (
	KeyIPVersion      = "ip_version"
	KeyHosts          = "hosts"
	KeyPingHost       = "ping_host"
	KeyDuration       = "duration"
	KeySessions       = "sessions"
	KeyFormat         = "format"
	KeyPhases         = "phases"
	KeyProbeInterval  = "probe.interval"
	KeyProbeCommand   = "probe.command"
	KeyProbeCommand6  = "probe.command6"
	KeySessionCommand = "session.command"
	KeyVerbose        = "verbose"
	KeyNoProgress     = "no_progress"
)

const (
	DefaultHost     = "netperf.bufferbloat.net"
	DefaultPingHost = "gstatic.com"

	minDuration = 1
	maxDuration = 900
	maxSessions = 64
)

// DefaultPath returns the conventional config file location,
// $XDG_CONFIG_HOME/netstrain/config.yaml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "netstrain", "config.yaml")
}

// Load resolves settings. An empty path means the default location,
// where a missing file is fine; an explicitly given path must be
// readable. Overrides are flag values keyed by the Key constants and
// beat every other layer.
func Load(path string, overrides map[string]any) (types.Settings, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return types.Settings{}, types.ErrInvalidConfig("reading config file", errors.Wrap(err, path))
			}
		}
	}

	v.SetEnvPrefix("NETSTRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range overrides {
		v.Set(key, val)
	}

	phases, err := ParsePhases(v.GetStringSlice(KeyPhases))
	if err != nil {
		return types.Settings{}, types.ErrInvalidConfig("bad phase selection", err)
	}

	settings := types.Settings{
		IPVersion:     v.GetInt(KeyIPVersion),
		Hosts:         SplitList(v.GetStringSlice(KeyHosts)...),
		PingHost:      v.GetString(KeyPingHost),
		Duration:      time.Duration(v.GetInt(KeyDuration)) * time.Second,
		Sessions:      v.GetInt(KeySessions),
		Format:        v.GetString(KeyFormat),
		Phases:        phases,
		ProbeInterval: time.Duration(v.GetFloat64(KeyProbeInterval) * float64(time.Second)),
		NetperfCmd:    v.GetString(KeySessionCommand),
		PingCmd:       v.GetString(KeyProbeCommand),
		Ping6Cmd:      v.GetString(KeyProbeCommand6),
		Verbose:       v.GetBool(KeyVerbose),
		NoProgress:    v.GetBool(KeyNoProgress),
	}

	if err := Validate(settings); err != nil {
		return types.Settings{}, err
	}
	return settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyIPVersion, 4)
	v.SetDefault(KeyHosts, []string{DefaultHost})
	v.SetDefault(KeyPingHost, DefaultPingHost)
	v.SetDefault(KeyDuration, 60)
	v.SetDefault(KeySessions, 5)
	v.SetDefault(KeyFormat, report.FormatPlain)
	v.SetDefault(KeyPhases, []string{})
	v.SetDefault(KeyProbeInterval, 0.2)
	v.SetDefault(KeyProbeCommand, "ping")
	v.SetDefault(KeyProbeCommand6, "ping6")
	v.SetDefault(KeySessionCommand, "netperf")
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyNoProgress, false)
}

// SplitList flattens comma-separated chunks into trimmed elements, so
// -H "a,b", a YAML list, and a query parameter all come out the same.
func SplitList(chunks ...string) []string {
	var out []string
	for _, chunk := range chunks {
		for _, item := range strings.Split(chunk, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// ParsePhases validates a phase selection and normalizes it to the
// fixed idle, download, upload order regardless of how it was spelled.
// An empty selection means all phases.
func ParsePhases(raw []string) ([]types.Phase, error) {
	if len(raw) == 0 {
		return types.AllPhases(), nil
	}
	selected := make(map[types.Phase]bool, len(raw))
	for _, s := range raw {
		p, err := types.ParsePhase(s)
		if err != nil {
			return nil, err
		}
		selected[p] = true
	}
	phases := make([]types.Phase, 0, len(selected))
	for _, p := range types.AllPhases() {
		if selected[p] {
			phases = append(phases, p)
		}
	}
	return phases, nil
}

// Validate checks a settings value against the documented bounds. Load
// calls it on every result; serve mode reuses it for per-request
// overrides.
func Validate(s types.Settings) error {
	if s.IPVersion != 4 && s.IPVersion != 6 {
		return types.ErrInvalidConfig("protocol family must be 4 or 6", nil)
	}
	if len(s.Hosts) == 0 {
		return types.ErrInvalidConfig("at least one host is required", nil)
	}
	if s.PingHost == "" {
		return types.ErrInvalidConfig("ping host cannot be empty", nil)
	}
	secs := int(s.Duration / time.Second)
	if secs < minDuration || secs > maxDuration {
		return types.ErrInvalidConfig("duration must be 1-900 seconds", nil)
	}
	if s.Sessions < 1 || s.Sessions > maxSessions {
		return types.ErrInvalidConfig("sessions per host must be 1-64", nil)
	}
	if !report.ValidFormat(s.Format) {
		return types.ErrInvalidConfig("format must be one of "+strings.Join(report.Formats(), ", "), nil)
	}
	if len(s.Phases) == 0 {
		return types.ErrInvalidConfig("at least one phase must be selected", nil)
	}
	if s.ProbeInterval <= 0 || s.ProbeInterval > time.Minute {
		return types.ErrInvalidConfig("probe interval must be positive and at most 60s", nil)
	}
	if s.NetperfCmd == "" || s.PingCmd == "" || s.Ping6Cmd == "" {
		return types.ErrInvalidConfig("subprocess command names cannot be empty", nil)
	}
	return nil
}
