package watchdog

import (
	"sync"
	"time"
)

// ProcessResult is the outcome recorded for one process in one cycle.
type ProcessResult struct {
	Name     string  `json:"name"`
	Restarts int     `json:"restarts"`
	Known    bool    `json:"known"`
	Outcome  Outcome `json:"outcome"`
}

// CycleSummary describes the most recent completed or aborted cycle.
type CycleSummary struct {
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Results     []ProcessResult `json:"results"`
	Notified    bool            `json:"notified"`
	Channel     string          `json:"channel,omitempty"`
	Receipt     string          `json:"receipt,omitempty"`
	NotifyError string          `json:"notify_error,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Snapshot is a copy of the State at one point in time.
type Snapshot struct {
	LastCycle    *CycleSummary `json:"last_cycle,omitempty"`
	Cycles       int64         `json:"cycles"`
	DroppedTicks int64         `json:"dropped_ticks"`
}

// State holds what the status API reports about the check loop.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type State struct {
	mu      sync.RWMutex
	last    *CycleSummary
	cycles  int64
	dropped int64
}

// NewState creates an empty State.
func NewState() *State {
	return &State{}
}

func (s *State) recordCycle(summary CycleSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = &summary
	s.cycles++
}

func (s *State) recordDroppedTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropped++
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Cycles: s.cycles, DroppedTicks: s.dropped}
	if s.last != nil {
		last := *s.last
		last.Results = append([]ProcessResult(nil), s.last.Results...)
		snap.LastCycle = &last
	}
	return snap
}
