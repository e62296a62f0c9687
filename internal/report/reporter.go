// Package report renders phase reports in the supported output formats.
package report

import (
	"fmt"
	"io"

	"github.com/saveenergy/netstrain/pkg/types"
)

const (
	FormatPlain      = "plain"
	FormatYAML       = "yaml"
	FormatPrometheus = "prometheus"
)

// Reporter renders one completed phase. Render is invoked once per
// phase, in phase order, against the same writer.
type Reporter interface {
	Render(rep types.PhaseReport) error
}

// New returns the reporter for the given format, writing to w.
func New(format string, w io.Writer) (Reporter, error) {
	switch format {
	case FormatPlain:
		return &PlainReporter{w: w}, nil
	case FormatYAML:
		return &YAMLReporter{w: w}, nil
	case FormatPrometheus:
		return &PrometheusReporter{w: w}, nil
	}
	return nil, fmt.Errorf("unknown output format: %q", format)
}

func ValidFormat(format string) bool {
	switch format {
	case FormatPlain, FormatYAML, FormatPrometheus:
		return true
	}
	return false
}

// Formats lists the accepted format names for usage text.
func Formats() []string {
	return []string{FormatPlain, FormatYAML, FormatPrometheus}
}
