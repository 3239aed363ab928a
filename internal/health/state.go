// Package health holds the process-wide health record: the latest
// collection outcome per bucket plus overall exporter health, written by
// the collection loop and read by the health API.
package health

import (
	"sync"
	"time"

	"github.com/idrive-tools/e2-exporter/internal/collector"
)

// State is the shared health record. All access goes through the mutex;
// the raw outcome map is never exposed, only copied snapshots.
type State struct {
	mu       sync.RWMutex
	healthy  bool
	lastPass *time.Time
	outcomes map[string]collector.Outcome
}

// Snapshot is a point-in-time copy of the health record. Outcome stats
// are shared by pointer but are immutable once produced.
type Snapshot struct {
	Healthy  bool
	LastPass *time.Time
	Outcomes map[string]collector.Outcome
}

// NewState returns an empty health record: no buckets, not healthy, no
// completed pass.
func NewState() *State {
	return &State{outcomes: make(map[string]collector.Outcome)}
}

// Record stores the latest outcome for a bucket, replacing any prior
// entry. Entries are created on a bucket's first collection attempt and
// never deleted while the process runs.
func (s *State) Record(o collector.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.Bucket] = o
}

// FinalizePass marks the end of a full collection pass. Overall health
// additionally requires at least one recorded bucket, so an empty record
// never reports healthy.
func (s *State) FinalizePass(healthy bool, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy && len(s.outcomes) > 0
	t := ts
	s.lastPass = &t
}

// Snapshot returns a consistent copy of the current record. The copy may
// observe a pass still in progress (some buckets updated, others holding
// the previous pass's outcome), but never a torn single outcome.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcomes := make(map[string]collector.Outcome, len(s.outcomes))
	for name, o := range s.outcomes {
		outcomes[name] = o
	}

	snap := Snapshot{Healthy: s.healthy, Outcomes: outcomes}
	if s.lastPass != nil {
		t := *s.lastPass
		snap.LastPass = &t
	}
	return snap
}
