package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adtrust/escrow-bridge/internal/escrow"
	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
	"go.uber.org/zap"
)

// scriptedLedger serves canned answers to the tracker's polls.
type scriptedLedger struct {
	mu         sync.Mutex
	checkpoint uint64
	tx         *ledger.Transaction
	txErr      error
	snap       *escrow.Snapshot
	snapErr    error
}

func (s *scriptedLedger) CurrentCheckpoint(ctx context.Context) (ledger.CheckpointInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.CheckpointInfo{Checkpoint: s.checkpoint}, nil
}

func (s *scriptedLedger) Transaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return nil, s.txErr
	}
	cp := *s.tx
	return &cp, nil
}

func (s *scriptedLedger) EscrowSnapshot(ctx context.Context, address string) (*escrow.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	cp := *s.snap
	return &cp, nil
}

func (s *scriptedLedger) Balance(ctx context.Context, id string) (int64, error) { return 0, nil }
func (s *scriptedLedger) Broadcast(ctx context.Context, env txcodec.SignedEnvelope) (string, error) {
	return "", nil
}
func (s *scriptedLedger) TransactionsAt(ctx context.Context, checkpoint uint64) ([]ledger.Transaction, error) {
	return nil, nil
}

func newScripted() *scriptedLedger {
	return &scriptedLedger{
		checkpoint: 10,
		txErr:      ledger.ErrNotFound,
		snap:       &escrow.Snapshot{},
	}
}

func testTracker(s *scriptedLedger, slack uint64) *Tracker {
	return NewTracker(s, 2*time.Millisecond, slack, zap.NewNop())
}

func TestTrackerConfirmsExecuted(t *testing.T) {
	s := newScripted()
	s.txErr = nil
	s.tx = &ledger.Transaction{ID: "tx1", Status: ledger.TxExecuted, ExecutedAt: 11, Applied: true}

	err := testTracker(s, 10).WaitForConfirmation(context.Background(), "tx1", ident(0xe5), 96, 15, time.Second)
	if err != nil {
		t.Fatalf("WaitForConfirmation: %v", err)
	}
}

func TestTrackerRejectsFailedTransaction(t *testing.T) {
	s := newScripted()
	s.txErr = nil
	s.tx = &ledger.Transaction{ID: "tx1", Status: ledger.TxFailed, Reason: "unknown escrow contract"}

	err := testTracker(s, 10).WaitForConfirmation(context.Background(), "tx1", ident(0xe5), 96, 15, time.Second)
	if KindOf(err) != KindRejected {
		t.Fatalf("kind = %q, want rejected", KindOf(err))
	}
}

func TestTrackerScoreVisibleCountsAsConfirmation(t *testing.T) {
	// The transaction itself is never sighted, but the escrow already
	// carries the submitted score.
	s := newScripted()
	s.snap = &escrow.Snapshot{IsVerified: true, VerificationScore: 96}

	err := testTracker(s, 10).WaitForConfirmation(context.Background(), "lost-tx", ident(0xe5), 96, 15, time.Second)
	if err != nil {
		t.Fatalf("WaitForConfirmation: %v", err)
	}
}

func TestTrackerScoreMismatchDoesNotConfirm(t *testing.T) {
	s := newScripted()
	s.snap = &escrow.Snapshot{IsVerified: true, VerificationScore: 50}
	s.checkpoint = 100 // far past target+slack

	err := testTracker(s, 10).WaitForConfirmation(context.Background(), "lost-tx", ident(0xe5), 96, 15, time.Second)
	if KindOf(err) != KindConfirmTimeout {
		t.Fatalf("kind = %q, want confirm_timeout", KindOf(err))
	}
}

func TestTrackerGivesUpPastSlackWindow(t *testing.T) {
	s := newScripted()
	s.checkpoint = 30 // target 15 + slack 10 exceeded

	err := testTracker(s, 10).WaitForConfirmation(context.Background(), "tx1", ident(0xe5), 96, 15, time.Second)
	if KindOf(err) != KindConfirmTimeout {
		t.Fatalf("kind = %q, want confirm_timeout", KindOf(err))
	}
}

func TestTrackerWallClockTimeout(t *testing.T) {
	s := newScripted() // checkpoint 10, within slack of target 15, tx never sighted

	start := time.Now()
	err := testTracker(s, 10).WaitForConfirmation(context.Background(), "tx1", ident(0xe5), 96, 15, 30*time.Millisecond)
	if KindOf(err) != KindConfirmTimeout {
		t.Fatalf("kind = %q, want confirm_timeout", KindOf(err))
	}
	if time.Since(start) > time.Second {
		t.Error("timeout took far longer than configured")
	}
}

func TestTrackerContextCancellation(t *testing.T) {
	s := newScripted()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := testTracker(s, 10).WaitForConfirmation(ctx, "tx1", ident(0xe5), 96, 15, time.Minute)
	if KindOf(err) != KindConfirmTimeout {
		t.Fatalf("kind = %q, want confirm_timeout", KindOf(err))
	}
}
