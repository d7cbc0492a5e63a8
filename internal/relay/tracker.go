package relay

import (
	"context"
	"errors"
	"time"

	"github.com/adtrust/escrow-bridge/internal/ledger"
	"go.uber.org/zap"
)

// Tracker polls the ledger until a broadcast transaction is observed
// executed, or the observed checkpoint passes the envelope's target by more
// than the slack window, or the wall clock runs out. The four terminal
// outcomes stay distinguishable: success, rejected, slack window exceeded,
// wall-clock timeout.
type Tracker struct {
	accessor     ledger.Accessor
	pollInterval time.Duration
	slack        uint64
	log          *zap.Logger
}

func NewTracker(accessor ledger.Accessor, pollInterval time.Duration, slack uint64, log *zap.Logger) *Tracker {
	return &Tracker{
		accessor:     accessor,
		pollInterval: pollInterval,
		slack:        slack,
		log:          log,
	}
}

// WaitForConfirmation blocks until the transaction confirms or fails. The
// escrow's own isVerified flag counts as independent confirmation for the
// submitted score: if the state already reflects the write, the relay's job
// is done whether or not this particular transaction carried it.
func (t *Tracker) WaitForConfirmation(ctx context.Context, txID, escrowAddr string, score int, target uint64, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errf(KindConfirmTimeout, ctx.Err(), "confirmation abandoned for %s", txID)
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return errf(KindConfirmTimeout, nil, "no confirmation for %s within %s", txID, timeout)
		}

		tx, err := t.accessor.Transaction(ctx, txID)
		switch {
		case err == nil:
			if tx.Status == ledger.TxExecuted {
				if t.log != nil {
					t.log.Info("transaction confirmed",
						zap.String("tx_id", txID),
						zap.Uint64("executed_at", tx.ExecutedAt),
						zap.Uint64("target", target),
					)
				}
				return nil
			}
			if tx.Status == ledger.TxFailed {
				return errf(KindRejected, nil, "transaction %s failed on ledger: %s", txID, tx.Reason)
			}
		case errors.Is(err, ledger.ErrNotFound):
			// Not sighted yet; fall through to the independent check.
		default:
			// Transient read failure: count it and keep polling.
			if t.log != nil {
				t.log.Warn("confirmation poll failed", zap.String("tx_id", txID), zap.Error(err))
			}
			continue
		}

		if verified, err := t.scoreVisible(ctx, escrowAddr, score); err == nil && verified {
			if t.log != nil {
				t.log.Info("score independently observed on escrow",
					zap.String("escrow", escrowAddr),
					zap.Int("score", score),
				)
			}
			return nil
		}

		info, err := t.accessor.CurrentCheckpoint(ctx)
		if err != nil {
			continue
		}
		if info.Checkpoint > target+t.slack {
			return errf(KindConfirmTimeout, nil,
				"checkpoint %d passed target %d by more than %d with no sighting of %s",
				info.Checkpoint, target, t.slack, txID)
		}
	}
}

func (t *Tracker) scoreVisible(ctx context.Context, escrowAddr string, score int) (bool, error) {
	snap, err := t.accessor.EscrowSnapshot(ctx, escrowAddr)
	if err != nil {
		return false, err
	}
	return snap.IsVerified && snap.VerificationScore == score, nil
}
