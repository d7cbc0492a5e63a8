package relay

import (
	"sync"
	"time"
)

// Outcome is one resolved relay attempt, memoized per post URL so repeated
// triggers for the same post answer without a second verifier round trip.
type Outcome struct {
	AttemptID      string    `json:"attempt_id"`
	PostURL        string    `json:"post_url"`
	Scenario       string    `json:"scenario,omitempty"`
	EscrowAddress  string    `json:"escrow_address"`
	Score          int       `json:"score"`
	Recommendation string    `json:"recommendation,omitempty"`
	TxID           string    `json:"tx_id,omitempty"`
	Confirmed      bool      `json:"confirmed"`
	CompletedAt    time.Time `json:"completed_at"`
}

// StateSnapshot is the monitoring view exposed by the state endpoint.
type StateSnapshot struct {
	LastProcessedTick uint64 `json:"last_processed_tick"`
	PendingCount      int    `json:"pending_count"`
	CompletedCount    int    `json:"completed_count"`
	FailedPolls       uint64 `json:"failed_polls"`
}

// State is the bridge's process-local, rebuildable bookkeeping. It is owned
// by one bridge instance and passed by reference, never package-level, so
// isolated instances can run side by side in tests. The completed map is
// written by relay attempts only; the tick fields by the monitor only.
type State struct {
	mu                sync.RWMutex
	lastProcessedTick uint64
	pending           int
	failedPolls       uint64
	completed         map[string]Outcome
}

func NewState() *State {
	return &State{completed: make(map[string]Outcome)}
}

func (s *State) SetLastProcessedTick(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tick > s.lastProcessedTick {
		s.lastProcessedTick = tick
	}
}

func (s *State) LastProcessedTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastProcessedTick
}

func (s *State) IncFailedPolls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedPolls++
}

func (s *State) AddPending(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending += delta
}

// RecordOutcome memoizes a resolved attempt. Last writer wins: the
// verifier's answer for a fixed post URL is stable within one campaign.
func (s *State) RecordOutcome(out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[out.PostURL] = out
}

// Lookup returns the memoized outcome for a post URL, if any.
func (s *State) Lookup(postURL string) (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.completed[postURL]
	return out, ok
}

func (s *State) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StateSnapshot{
		LastProcessedTick: s.lastProcessedTick,
		PendingCount:      s.pending,
		CompletedCount:    len(s.completed),
		FailedPolls:       s.failedPolls,
	}
}
