package server

import (
	"sync"
	"time"

	"github.com/saveenergy/netstrain/pkg/types"
)

// StoredRun is one completed measurement kept for later retrieval.
type StoredRun struct {
	RunID     string              `json:"run_id"`
	Reports   []types.PhaseReport `json:"reports"`
	CreatedAt time.Time           `json:"created_at"`
}

// runStore holds the most recent completed runs, newest last. It is
// memory only; nothing survives a restart.
type runStore struct {
	mu   sync.RWMutex
	max  int
	runs []StoredRun
}

func newRunStore(max int) *runStore {
	if max < 1 {
		max = 1
	}
	return &runStore{max: max}
}

func (s *runStore) add(runID string, reports []types.PhaseReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, StoredRun{
		RunID:     runID,
		Reports:   reports,
		CreatedAt: time.Now().UTC(),
	})
	if len(s.runs) > s.max {
		s.runs = s.runs[len(s.runs)-s.max:]
	}
}

func (s *runStore) latest() (StoredRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return StoredRun{}, false
	}
	return s.runs[len(s.runs)-1], true
}

func (s *runStore) get(runID string) (StoredRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].RunID == runID {
			return s.runs[i], true
		}
	}
	return StoredRun{}, false
}

// list returns run summaries newest first, without the report bodies.
func (s *runStore) list() []StoredRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredRun, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, StoredRun{
			RunID:     s.runs[i].RunID,
			CreatedAt: s.runs[i].CreatedAt,
		})
	}
	return out
}
