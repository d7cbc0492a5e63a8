// Package txcodec builds, serializes, and signs procedure-call envelopes for
// the checkpoint ledger. Construction is deterministic: identical inputs
// yield byte-identical envelopes, so idempotency rests entirely on the
// target checkpoint.
package txcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/adtrust/escrow-bridge/internal/escrow"
)

// Procedure identifiers understood by the escrow contract.
const (
	ProcedureSetOracle uint32 = iota + 1
	ProcedureDeposit
	ProcedureSetScore
	ProcedureRelease
	ProcedureRefund
)

// PayloadFormat selects the score payload encoding. Picked once at
// construction from configuration, never by inspecting payload content.
type PayloadFormat string

const (
	// FormatScore is the single-byte encoding: just the clamped score.
	FormatScore PayloadFormat = "score"
	// FormatAttested carries the score plus the post URL and the verifier
	// observation timestamp.
	FormatAttested PayloadFormat = "attested"
)

const (
	scorePayloadVersion    = 1
	attestedPayloadVersion = 2
	maxAttestedURLLen      = math.MaxUint16
)

// Attestation is the extra context included by the attested payload format.
// ObservedAt is supplied by the caller; nothing inside the codec reads the
// clock, which keeps signatures reproducible.
type Attestation struct {
	PostURL    string
	ObservedAt int64
}

// Envelope is an unsigned procedure call. Amount is zero for score
// submission; only deposits move value.
type Envelope struct {
	SourceID         string `json:"source_id"`
	DestID           string `json:"dest_id"`
	Amount           int64  `json:"amount"`
	TargetCheckpoint uint64 `json:"target_checkpoint"`
	ProcedureID      uint32 `json:"procedure_id"`
	Payload          []byte `json:"payload"`
}

// SignedEnvelope is immutable once produced: any changed field needs a new
// envelope and a new target checkpoint.
type SignedEnvelope struct {
	Envelope
	Signature []byte `json:"signature"`
}

// ClampScore rounds to the nearest integer and clamps into [0,100].
func ClampScore(score float64) int {
	s := int(math.Round(score))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// EncodeScore serializes a score as a single unsigned byte, clamping first.
func EncodeScore(score float64) []byte {
	return []byte{byte(ClampScore(score))}
}

// DecodeScore reverses EncodeScore.
func DecodeScore(payload []byte) (int, error) {
	if len(payload) != 1 {
		return 0, fmt.Errorf("score payload: want 1 byte, got %d", len(payload))
	}
	s := int(payload[0])
	if s > 100 {
		return 0, fmt.Errorf("score payload: %d out of range", s)
	}
	return s, nil
}

// EncodeAttestedScore is the multi-field payload:
// version(1) | score(1) | observedAt(8 BE) | urlLen(2 BE) | url.
func EncodeAttestedScore(score float64, att Attestation) ([]byte, error) {
	if len(att.PostURL) > maxAttestedURLLen {
		return nil, fmt.Errorf("post url exceeds %d bytes", maxAttestedURLLen)
	}
	buf := make([]byte, 0, 12+len(att.PostURL))
	buf = append(buf, attestedPayloadVersion, byte(ClampScore(score)))
	buf = binary.BigEndian.AppendUint64(buf, uint64(att.ObservedAt))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(att.PostURL)))
	buf = append(buf, att.PostURL...)
	return buf, nil
}

// DecodeAttestedScore reverses EncodeAttestedScore.
func DecodeAttestedScore(payload []byte) (int, Attestation, error) {
	if len(payload) < 12 {
		return 0, Attestation{}, fmt.Errorf("attested payload: %d bytes is too short", len(payload))
	}
	if payload[0] != attestedPayloadVersion {
		return 0, Attestation{}, fmt.Errorf("attested payload: unknown version %d", payload[0])
	}
	score := int(payload[1])
	if score > 100 {
		return 0, Attestation{}, fmt.Errorf("attested payload: score %d out of range", score)
	}
	observedAt := int64(binary.BigEndian.Uint64(payload[2:10]))
	urlLen := int(binary.BigEndian.Uint16(payload[10:12]))
	if len(payload) != 12+urlLen {
		return 0, Attestation{}, fmt.Errorf("attested payload: url length mismatch")
	}
	return score, Attestation{PostURL: string(payload[12:]), ObservedAt: observedAt}, nil
}

// DecodeScorePayload accepts either encoding, dispatching on length and
// version byte of the wire form (the contract side has to read both).
func DecodeScorePayload(payload []byte) (int, error) {
	if len(payload) == 1 {
		return DecodeScore(payload)
	}
	score, _, err := DecodeAttestedScore(payload)
	return score, err
}

// EncodeSetOracle serializes a setOracleId payload.
func EncodeSetOracle(oracleID string) ([]byte, error) {
	if err := escrow.CheckIdentity(oracleID); err != nil {
		return nil, err
	}
	return []byte(oracleID), nil
}

// DecodeSetOracle reverses EncodeSetOracle.
func DecodeSetOracle(payload []byte) (string, error) {
	id := string(payload)
	if err := escrow.CheckIdentity(id); err != nil {
		return "", err
	}
	return id, nil
}

// EncodeDeposit serializes a depositFunds payload:
// influencerID(60) | retentionDays(2 BE). The amount rides on the envelope.
func EncodeDeposit(influencerID string, retentionDays int) ([]byte, error) {
	if err := escrow.CheckIdentity(influencerID); err != nil {
		return nil, err
	}
	if retentionDays < 0 || retentionDays > math.MaxUint16 {
		return nil, fmt.Errorf("retention days %d out of range", retentionDays)
	}
	buf := make([]byte, 0, escrow.IdentityLen+2)
	buf = append(buf, influencerID...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(retentionDays))
	return buf, nil
}

// DecodeDeposit reverses EncodeDeposit.
func DecodeDeposit(payload []byte) (string, int, error) {
	if len(payload) != escrow.IdentityLen+2 {
		return "", 0, fmt.Errorf("deposit payload: want %d bytes, got %d", escrow.IdentityLen+2, len(payload))
	}
	id := string(payload[:escrow.IdentityLen])
	if err := escrow.CheckIdentity(id); err != nil {
		return "", 0, err
	}
	days := int(binary.BigEndian.Uint16(payload[escrow.IdentityLen:]))
	return id, days, nil
}

// CanonicalBytes is the byte serialization that gets signed: every field in
// fixed order, big-endian, length-prefixed payload.
func CanonicalBytes(env Envelope) []byte {
	buf := make([]byte, 0, 2*escrow.IdentityLen+24+len(env.Payload))
	buf = append(buf, env.SourceID...)
	buf = append(buf, env.DestID...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(env.Amount))
	buf = binary.BigEndian.AppendUint64(buf, env.TargetCheckpoint)
	buf = binary.BigEndian.AppendUint32(buf, env.ProcedureID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(env.Payload)))
	buf = append(buf, env.Payload...)
	return buf
}

// Builder constructs score-submission envelopes with a fixed checkpoint
// lookahead. The lookahead buys time for broadcast and propagation before
// the target checkpoint finalizes; the ledger rejects anything that arrives
// after its target.
type Builder struct {
	format    PayloadFormat
	lookahead uint64
}

func NewBuilder(format PayloadFormat, lookahead uint64) (*Builder, error) {
	switch format {
	case FormatScore, FormatAttested:
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
	if lookahead == 0 {
		return nil, fmt.Errorf("lookahead must be positive")
	}
	return &Builder{format: format, lookahead: lookahead}, nil
}

// Lookahead exposes the configured safety margin.
func (b *Builder) Lookahead() uint64 { return b.lookahead }

// BuildScoreEnvelope assembles an unsigned setVerificationScore call
// targeting currentCheckpoint + lookahead.
func (b *Builder) BuildScoreEnvelope(sourceID, destID string, score int, currentCheckpoint uint64, att Attestation) (Envelope, error) {
	var payload []byte
	var err error
	switch b.format {
	case FormatAttested:
		payload, err = EncodeAttestedScore(float64(score), att)
		if err != nil {
			return Envelope{}, err
		}
	default:
		payload = EncodeScore(float64(score))
	}

	return Envelope{
		SourceID:         sourceID,
		DestID:           destID,
		Amount:           0,
		TargetCheckpoint: currentCheckpoint + b.lookahead,
		ProcedureID:      ProcedureSetScore,
		Payload:          payload,
	}, nil
}

// ValidationResult collects every pre-flight failure instead of stopping at
// the first, so callers can log all of them at once.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateParams is the pure pre-flight check run before any broadcast.
// Retrying with the same invalid input cannot succeed, so a failure here is
// fatal to the attempt.
func ValidateParams(destID string, score int, checkpoint uint64) ValidationResult {
	var errs []string
	if !escrow.ValidIdentity(destID) {
		errs = append(errs, fmt.Sprintf("destination identity must be %d lowercase hex characters", escrow.IdentityLen))
	}
	if score < 0 || score > 100 {
		errs = append(errs, fmt.Sprintf("score %d outside [0,100]", score))
	}
	if checkpoint == 0 {
		errs = append(errs, "checkpoint must be positive")
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
