package types

import "time"

// Settings is the resolved run configuration. The config package builds
// it once from defaults, config file, environment, and flags; after that
// it is immutable and passed by value into every component.
type Settings struct {
	IPVersion     int
	Hosts         []string
	PingHost      string
	Duration      time.Duration
	Sessions      int
	Format        string
	Phases        []Phase
	ProbeInterval time.Duration

	// Subprocess command names, overridable for exotic installs.
	NetperfCmd string
	PingCmd    string
	Ping6Cmd   string

	Verbose    bool
	NoProgress bool
}

// ProbeCommand returns the echo-probe binary for the configured protocol
// family.
func (s Settings) ProbeCommand() string {
	if s.IPVersion == 6 {
		return s.Ping6Cmd
	}
	return s.PingCmd
}
