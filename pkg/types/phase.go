package types

import (
	"fmt"
	"strings"
)

// Phase is one measurement window. The idle phase samples latency on an
// unloaded link; download and upload add concurrent transfer sessions.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseDownload Phase = "download"
	PhaseUpload   Phase = "upload"
)

// AllPhases returns every phase in its fixed execution order.
func AllPhases() []Phase {
	return []Phase{PhaseIdle, PhaseDownload, PhaseUpload}
}

func ParsePhase(s string) (Phase, error) {
	switch Phase(strings.ToLower(strings.TrimSpace(s))) {
	case PhaseIdle:
		return PhaseIdle, nil
	case PhaseDownload:
		return PhaseDownload, nil
	case PhaseUpload:
		return PhaseUpload, nil
	}
	return "", fmt.Errorf("unknown phase: %q", s)
}

func (p Phase) Valid() bool {
	return p == PhaseIdle || p == PhaseDownload || p == PhaseUpload
}

// Title returns the capitalized phase name used in human-readable output.
func (p Phase) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// Direction maps a phase to the transfer direction its sessions run in.
// The idle phase has no transfer component and maps to DirectionNone.
func (p Phase) Direction() Direction {
	switch p {
	case PhaseDownload:
		return DirectionDownload
	case PhaseUpload:
		return DirectionUpload
	}
	return DirectionNone
}

type Direction string

const (
	DirectionNone     Direction = ""
	DirectionDownload Direction = "download"
	DirectionUpload   Direction = "upload"
)
