package txcodec

import (
	"bytes"
	"fmt"
	"testing"
)

func ident(seed int) string { return fmt.Sprintf("%060x", seed) }

// Generated once for tests; any valid secp256k1 key works.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f"

func TestEncodeScoreRoundTrip(t *testing.T) {
	for s := 0; s <= 100; s++ {
		enc := EncodeScore(float64(s))
		dec, err := DecodeScore(enc)
		if err != nil {
			t.Fatalf("DecodeScore(%d): %v", s, err)
		}
		if dec != s {
			t.Errorf("round trip %d -> %d", s, dec)
		}
		if !bytes.Equal(EncodeScore(float64(dec)), enc) {
			t.Errorf("re-encode of %d not byte-identical", s)
		}
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{-5, 0},
		{0, 0},
		{42.4, 42},
		{42.5, 43},
		{99.9, 100},
		{100, 100},
		{250, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAttestedPayloadRoundTrip(t *testing.T) {
	att := Attestation{PostURL: "https://example.com/p/abc123", ObservedAt: 1717171717}
	payload, err := EncodeAttestedScore(96, att)
	if err != nil {
		t.Fatalf("EncodeAttestedScore: %v", err)
	}

	score, got, err := DecodeAttestedScore(payload)
	if err != nil {
		t.Fatalf("DecodeAttestedScore: %v", err)
	}
	if score != 96 || got != att {
		t.Errorf("round trip = (%d, %+v), want (96, %+v)", score, got, att)
	}

	// The generic decoder handles both formats.
	if s, err := DecodeScorePayload(payload); err != nil || s != 96 {
		t.Errorf("DecodeScorePayload(attested) = (%d, %v)", s, err)
	}
	if s, err := DecodeScorePayload(EncodeScore(42)); err != nil || s != 42 {
		t.Errorf("DecodeScorePayload(score) = (%d, %v)", s, err)
	}
}

func TestDepositPayloadRoundTrip(t *testing.T) {
	influencer := ident(0x1f)
	payload, err := EncodeDeposit(influencer, 14)
	if err != nil {
		t.Fatalf("EncodeDeposit: %v", err)
	}
	id, days, err := DecodeDeposit(payload)
	if err != nil {
		t.Fatalf("DecodeDeposit: %v", err)
	}
	if id != influencer || days != 14 {
		t.Errorf("round trip = (%s, %d)", id, days)
	}

	if _, err := EncodeDeposit("short", 14); err == nil {
		t.Error("EncodeDeposit accepted malformed identity")
	}
}

func TestBuildScoreEnvelopeDeterministic(t *testing.T) {
	b, err := NewBuilder(FormatScore, 5)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	src, dst := ident(0x0c), ident(0xe5)
	e1, err := b.BuildScoreEnvelope(src, dst, 96, 100, Attestation{})
	if err != nil {
		t.Fatalf("BuildScoreEnvelope: %v", err)
	}
	e2, _ := b.BuildScoreEnvelope(src, dst, 96, 100, Attestation{})

	if !bytes.Equal(CanonicalBytes(e1), CanonicalBytes(e2)) {
		t.Error("identical inputs produced different canonical bytes")
	}
	if e1.TargetCheckpoint != 105 {
		t.Errorf("TargetCheckpoint = %d, want current+lookahead", e1.TargetCheckpoint)
	}
	if e1.Amount != 0 {
		t.Errorf("score submission must carry zero amount, got %d", e1.Amount)
	}

	// A different checkpoint changes the canonical form: uniqueness is
	// carried by the target checkpoint, nothing else.
	e3, _ := b.BuildScoreEnvelope(src, dst, 96, 101, Attestation{})
	if bytes.Equal(CanonicalBytes(e1), CanonicalBytes(e3)) {
		t.Error("different checkpoints produced identical canonical bytes")
	}
}

func TestSignDeterministicAndVerifiable(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	b, _ := NewBuilder(FormatScore, 5)
	env, _ := b.BuildScoreEnvelope(signer.Identity(), ident(0xe5), 96, 100, Attestation{})

	s1, err := signer.Sign(env)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	s2, _ := signer.Sign(env)
	if !bytes.Equal(s1.Signature, s2.Signature) {
		t.Error("two signatures over identical input differ")
	}

	id, err := VerifyEnvelope(s1)
	if err != nil {
		t.Fatalf("VerifyEnvelope: %v", err)
	}
	if id != signer.Identity() {
		t.Errorf("recovered %s, want %s", id, signer.Identity())
	}
	if len(signer.Identity()) != 60 {
		t.Errorf("identity length = %d, want 60", len(signer.Identity()))
	}

	// A forged source identity must not verify.
	forged := s1
	forged.SourceID = ident(0xdd)
	if _, err := VerifyEnvelope(forged); err == nil {
		t.Error("envelope with mismatched source verified")
	}

	if TxID(s1) != TxID(s2) {
		t.Error("TxID unstable for identical signed envelopes")
	}
}

func TestValidateParams(t *testing.T) {
	good := ident(0xe5)
	tests := []struct {
		name       string
		dest       string
		score      int
		checkpoint uint64
		wantValid  bool
		wantErrs   int
	}{
		{"all valid", good, 96, 100, true, 0},
		{"bad identity", "nope", 96, 100, false, 1},
		{"score too high", good, 101, 100, false, 1},
		{"score negative", good, -1, 100, false, 1},
		{"zero checkpoint", good, 96, 0, false, 1},
		{"everything wrong", "x", 200, 0, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateParams(tt.dest, tt.score, tt.checkpoint)
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors: %v)", res.Valid, tt.wantValid, res.Errors)
			}
			if len(res.Errors) != tt.wantErrs {
				t.Errorf("got %d errors %v, want %d", len(res.Errors), res.Errors, tt.wantErrs)
			}
		})
	}
}

func TestNewBuilderRejectsBadConfig(t *testing.T) {
	if _, err := NewBuilder("protobuf", 5); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := NewBuilder(FormatScore, 0); err == nil {
		t.Error("zero lookahead accepted")
	}
}
