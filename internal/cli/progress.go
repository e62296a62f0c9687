package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/saveenergy/netstrain/internal/run"
)

// progress paints a single carriage-return line on stderr while a phase
// runs. It stays silent unless the writer is a terminal, so piped and
// redirected output never sees control sequences.
type progress struct {
	w      io.Writer
	mu     sync.Mutex
	active bool
}

func newProgress(w io.Writer, disabled bool) *progress {
	if disabled {
		return nil
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &progress{w: f}
}

func (p *progress) observe(ev run.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case run.EventPhaseStarted:
		fmt.Fprintf(p.w, "%s phase, %.0fs:\n", ev.Phase.Title(), ev.Duration)
	case run.EventTick:
		fmt.Fprintf(p.w, "\r\033[K  %5.1fs / %.0fs, %d pings", ev.Elapsed, ev.Duration, ev.Samples)
		p.active = true
	case run.EventPhaseReported, run.EventRunCompleted:
		p.clearLocked()
	}
}

// finish clears any leftover tick line when the run ends early.
func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

func (p *progress) clearLocked() {
	if !p.active {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
	p.active = false
}
