package probe

import (
	"strconv"
	"strings"

	"github.com/saveenergy/netstrain/pkg/types"
)

// parseLine classifies one line of echo-probe output. Reply lines carry
// a "time=<rtt> ms" token; unanswered probes show up as timeout or
// unreachable lines. Banner and summary noise returns ok=false.
func parseLine(line string) (types.LatencySample, bool) {
	if isDropLine(line) {
		return types.Drop(), true
	}
	if ms, ok := parseRTT(line); ok {
		return types.Sample(ms), true
	}
	return types.LatencySample{}, false
}

func parseRTT(line string) (float64, bool) {
	idx := strings.LastIndex(line, "time=")
	if idx < 0 {
		return 0, false
	}
	rest := line[idx+len("time="):]
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	// Both "time=12.3 ms" and the squashed "time=12.3ms" occur in the
	// wild.
	tok := strings.TrimSuffix(fields[0], "ms")
	ms, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func isDropLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "no answer yet"):
		// iputils with -O
		return true
	case strings.Contains(lower, "request timeout"):
		return true
	case strings.Contains(lower, "timed out"):
		return true
	case strings.Contains(lower, "unreachable"):
		return true
	}
	return false
}
