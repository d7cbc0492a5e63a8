package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/adtrust/escrow-bridge/internal/events"
	"github.com/adtrust/escrow-bridge/internal/ledger"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
	"github.com/adtrust/escrow-bridge/internal/verifier"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostChecker is the optional pre-flight probe of the post URL.
type PostChecker interface {
	Check(ctx context.Context, postURL string) error
}

// AttemptRecorder persists resolved attempts, best effort. The relay works
// identically with recording disabled; history is an audit trail, not
// load-bearing state.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, out Outcome, errKind string) error
}

// Request triggers one relay attempt.
type Request struct {
	PostURL       string
	Scenario      string
	EscrowAddress string
}

// Options bound every external interaction of a relay attempt.
type Options struct {
	EscrowAddress       string
	VerifierTimeout     time.Duration
	LedgerTimeout       time.Duration
	ConfirmTimeout      time.Duration
	BroadcastMaxRetries int
	RetryBaseDelay      time.Duration
}

// Bridge is the orchestrator: it requests a score, builds and signs a
// setVerificationScore transaction, broadcasts it, and drives confirmation.
// One attempt runs at a time per instance; overlapping attempts for the
// same campaign would only burn broadcasts against the write-once guard.
type Bridge struct {
	opts     Options
	accessor ledger.Accessor
	verifier verifier.Client
	checker  PostChecker // nil disables the pre-check
	signer   *txcodec.Signer
	builder  *txcodec.Builder
	tracker  *Tracker
	state    *State
	pub      events.Publisher
	recorder AttemptRecorder // nil disables history
	log      *zap.Logger

	mu sync.Mutex
}

func NewBridge(
	opts Options,
	accessor ledger.Accessor,
	vc verifier.Client,
	checker PostChecker,
	signer *txcodec.Signer,
	builder *txcodec.Builder,
	tracker *Tracker,
	state *State,
	pub events.Publisher,
	recorder AttemptRecorder,
	log *zap.Logger,
) *Bridge {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Bridge{
		opts:     opts,
		accessor: accessor,
		verifier: vc,
		checker:  checker,
		signer:   signer,
		builder:  builder,
		tracker:  tracker,
		state:    state,
		pub:      pub,
		recorder: recorder,
		log:      log,
	}
}

// State exposes the owned relay state for the monitoring surface.
func (b *Bridge) State() *State { return b.state }

// Relay runs one end-to-end attempt: score request, envelope build,
// broadcast, confirmation. A confirmed outcome for the same post URL is
// answered from the completed map without touching the verifier again.
// Failures come back as *Error; a failed attempt leaves the campaign in its
// prior state and is always safe to retry from scratch.
func (b *Bridge) Relay(ctx context.Context, req Request) (*Outcome, error) {
	postURL := strings.TrimSpace(req.PostURL)
	if postURL == "" {
		return nil, errf(KindValidation, nil, "post_url is required")
	}
	escrowAddr := req.EscrowAddress
	if escrowAddr == "" {
		escrowAddr = b.opts.EscrowAddress
	}

	if out, ok := b.state.Lookup(postURL); ok && out.Confirmed {
		return &out, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-check under the lock: an attempt that just finished may have
	// resolved this post URL.
	if out, ok := b.state.Lookup(postURL); ok && out.Confirmed {
		return &out, nil
	}

	b.state.AddPending(1)
	defer b.state.AddPending(-1)

	attemptID := uuid.NewString()
	log := b.log.With(
		zap.String("attempt_id", attemptID),
		zap.String("post_url", postURL),
		zap.String("escrow", escrowAddr),
	)
	log.Info("relay attempt started", zap.String("scenario", req.Scenario))

	if b.checker != nil {
		if err := b.checker.Check(ctx, postURL); err != nil {
			return nil, errf(KindValidation, err, "post pre-check failed")
		}
	}

	// REQUESTING_SCORE. A verifier failure is fatal to the attempt; no
	// synthetic score is ever invented here.
	vctx, cancel := context.WithTimeout(ctx, b.opts.VerifierTimeout)
	result, err := b.verifier.Score(vctx, postURL, req.Scenario)
	cancel()
	if err != nil {
		return nil, errf(KindVerifier, err, "score request failed")
	}
	score := result.OverallScore
	observedAt := time.Now().Unix()

	outcome := Outcome{
		AttemptID:      attemptID,
		PostURL:        postURL,
		Scenario:       req.Scenario,
		EscrowAddress:  escrowAddr,
		Score:          score,
		Recommendation: result.Recommendation,
	}

	var lastErr error
	for attempt := 0; attempt <= b.opts.BroadcastMaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn("retrying submission", zap.Int("attempt", attempt), zap.Error(lastErr))
			if sleepOrDone(ctx, time.Duration(attempt)*b.opts.RetryBaseDelay) {
				lastErr = errf(KindTransport, ctx.Err(), "relay cancelled")
				break
			}
		}

		txID, err := b.submitOnce(ctx, log, escrowAddr, score, postURL, observedAt)
		if err == nil {
			outcome.TxID = txID
			outcome.Confirmed = true
			outcome.CompletedAt = time.Now()
			b.resolve(ctx, log, outcome, "")
			return &outcome, nil
		}

		lastErr = err
		switch KindOf(err) {
		case KindValidation, KindRejected:
			// Retrying with the same input cannot succeed. Still a resolved
			// attempt: it gets its failure event and history row.
			outcome.CompletedAt = time.Now()
			b.resolve(ctx, log, outcome, string(KindOf(err)))
			return nil, err
		case KindConfirmTimeout:
			// Ambiguous: the transaction may still land. Re-check before
			// blindly retrying, to avoid pointless duplicate submissions.
			if visible, checkErr := b.tracker.scoreVisible(ctx, escrowAddr, score); checkErr == nil && visible {
				outcome.Confirmed = true
				outcome.CompletedAt = time.Now()
				b.resolve(ctx, log, outcome, "")
				return &outcome, nil
			}
		}
	}

	// Exhausted. Record the truthful unconfirmed outcome; never a false
	// success entry.
	outcome.CompletedAt = time.Now()
	b.resolve(ctx, log, outcome, string(KindOf(lastErr)))
	return nil, lastErr
}

// submitOnce is phases BUILDING_TX through CONFIRMING for one envelope. The
// checkpoint is fetched immediately before signing: an envelope signed
// against a stale checkpoint may target one already finalized.
func (b *Bridge) submitOnce(ctx context.Context, log *zap.Logger, escrowAddr string, score int, postURL string, observedAt int64) (string, error) {
	lctx, cancel := context.WithTimeout(ctx, b.opts.LedgerTimeout)
	info, err := b.accessor.CurrentCheckpoint(lctx)
	cancel()
	if err != nil {
		return "", errf(KindTransport, err, "fetch checkpoint")
	}

	if v := txcodec.ValidateParams(escrowAddr, score, info.Checkpoint); !v.Valid {
		return "", errf(KindValidation, nil, "invalid submission: %s", strings.Join(v.Errors, "; "))
	}

	env, err := b.builder.BuildScoreEnvelope(
		b.signer.Identity(), escrowAddr, score, info.Checkpoint,
		txcodec.Attestation{PostURL: postURL, ObservedAt: observedAt},
	)
	if err != nil {
		return "", errf(KindValidation, err, "build envelope")
	}

	signed, err := b.signer.Sign(env)
	if err != nil {
		return "", errf(KindValidation, err, "sign envelope")
	}

	// BROADCASTING. A transport failure propagates; it is never converted
	// into a fabricated transaction id.
	lctx, cancel = context.WithTimeout(ctx, b.opts.LedgerTimeout)
	txID, err := b.accessor.Broadcast(lctx, signed)
	cancel()
	if err != nil {
		if errors.Is(err, ledger.ErrUnavailable) {
			return "", errf(KindTransport, err, "broadcast")
		}
		return "", errf(KindRejected, err, "broadcast")
	}

	log.Info("transaction broadcast",
		zap.String("tx_id", txID),
		zap.Uint64("target_checkpoint", env.TargetCheckpoint),
		zap.Int("score", score),
	)

	// CONFIRMING.
	if err := b.tracker.WaitForConfirmation(ctx, txID, escrowAddr, score, env.TargetCheckpoint, b.opts.ConfirmTimeout); err != nil {
		return "", err
	}
	return txID, nil
}

func (b *Bridge) resolve(ctx context.Context, log *zap.Logger, out Outcome, errKind string) {
	b.state.RecordOutcome(out)

	eventType := events.EventRelayConfirmed
	if !out.Confirmed {
		eventType = events.EventRelayFailed
	}
	if err := b.pub.Publish(ctx, events.StreamRelay, events.Event{
		Type: eventType,
		Payload: map[string]any{
			"attempt_id": out.AttemptID,
			"post_url":   out.PostURL,
			"escrow":     out.EscrowAddress,
			"score":      out.Score,
			"tx_id":      out.TxID,
			"confirmed":  out.Confirmed,
			"error_kind": errKind,
		},
	}); err != nil {
		log.Warn("failed to publish relay event", zap.Error(err))
	}

	if b.recorder != nil {
		if err := b.recorder.RecordAttempt(ctx, out, errKind); err != nil {
			log.Warn("failed to record relay attempt", zap.Error(err))
		}
	}

	if out.Confirmed {
		log.Info("relay attempt confirmed", zap.String("tx_id", out.TxID), zap.Int("score", out.Score))
	} else {
		log.Warn("relay attempt failed", zap.String("error_kind", errKind))
	}
}

// sleepOrDone waits d or until ctx cancels; reports cancellation.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}
