package escrow

import (
	"fmt"
	"math/rand"
	"testing"
)

// book is a minimal in-memory balance book for exercising the state machine
// without a ledger.
type book map[string]int64

func (b book) Balance(id string) int64 { return b[id] }

func (b book) Transfer(from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative amount")
	}
	if b[from] < amount {
		return fmt.Errorf("insufficient funds")
	}
	b[from] -= amount
	b[to] += amount
	return nil
}

func ident(seed int) string { return fmt.Sprintf("%060x", seed) }

var (
	escrowAddr = ident(0xe5)
	platform   = ident(0x91)
	brand      = ident(0xb1)
	influencer = ident(0x1f)
	oracle     = ident(0x0c)
	stranger   = ident(0xdd)
)

func fundedEscrow(t *testing.T, b book) *State {
	t.Helper()
	s := New(escrowAddr, platform)
	if res := s.SetOracleID(oracle); !res.Applied {
		t.Fatalf("SetOracleID refused: %s", res.Reason)
	}
	b[brand] = 100_000
	if res := s.Deposit(b, brand, influencer, 100_000, 7, 10); !res.Applied {
		t.Fatalf("Deposit refused: %s", res.Reason)
	}
	return s
}

func TestSetOracleIDFirstWriterWins(t *testing.T) {
	s := New(escrowAddr, platform)

	if res := s.SetOracleID(oracle); !res.Applied {
		t.Fatalf("first SetOracleID refused: %s", res.Reason)
	}
	res := s.SetOracleID(stranger)
	if res.Applied {
		t.Fatal("second SetOracleID should be a no-op")
	}
	if res.Reason != ReasonOracleAlreadySet {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonOracleAlreadySet)
	}
	if s.OracleID != oracle {
		t.Errorf("OracleID = %q, want first writer %q", s.OracleID, oracle)
	}
}

func TestDepositGuards(t *testing.T) {
	tests := []struct {
		name          string
		setOracle     bool
		balance       int64
		amount        int64
		retentionDays int
		wantReason    string
	}{
		{"oracle not set", false, 100_000, 100_000, 7, ReasonOracleNotSet},
		{"zero amount", true, 100_000, 0, 7, ReasonZeroAmount},
		{"negative amount", true, 100_000, -5, 7, ReasonZeroAmount},
		{"retention too short", true, 100_000, 100_000, 6, ReasonRetentionTooShort},
		{"insufficient balance", true, 99_999, 100_000, 7, ReasonInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := book{brand: tt.balance}
			s := New(escrowAddr, platform)
			if tt.setOracle {
				s.SetOracleID(oracle)
			}
			res := s.Deposit(b, brand, influencer, tt.amount, tt.retentionDays, 10)
			if res.Applied {
				t.Fatal("deposit should have been refused")
			}
			if res.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if s.IsActive {
				t.Error("refused deposit must not activate the escrow")
			}
			if b[brand] != tt.balance {
				t.Errorf("refused deposit moved funds: balance %d, want %d", b[brand], tt.balance)
			}
		})
	}
}

func TestDepositSplitsFee(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)

	if s.PlatformFee != 3_000 {
		t.Errorf("PlatformFee = %d, want 3000", s.PlatformFee)
	}
	if s.EscrowBalance != 97_000 {
		t.Errorf("EscrowBalance = %d, want 97000", s.EscrowBalance)
	}
	if s.RetentionEndTick != 10+7*TicksPerDay {
		t.Errorf("RetentionEndTick = %d, want %d", s.RetentionEndTick, 10+7*TicksPerDay)
	}
	if !s.IsActive {
		t.Error("escrow should be active after deposit")
	}
	if b[escrowAddr] != 100_000 {
		t.Errorf("escrow address holds %d, want full deposit", b[escrowAddr])
	}
}

func TestSetVerificationScoreAuthorization(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)

	if res := s.SetVerificationScore(stranger, 99); res.Applied {
		t.Fatal("non-oracle caller must not set the score")
	}
	if s.IsVerified || s.VerificationScore != 0 {
		t.Error("unauthorized call changed state")
	}

	if res := s.SetVerificationScore(oracle, 101); res.Applied {
		t.Fatal("out-of-range score accepted")
	}

	if res := s.SetVerificationScore(oracle, 96); !res.Applied {
		t.Fatalf("oracle score refused: %s", res.Reason)
	}
	if res := s.SetVerificationScore(oracle, 42); res.Applied {
		t.Fatal("score is write-once")
	}
	if s.VerificationScore != 96 {
		t.Errorf("VerificationScore = %d, want 96", s.VerificationScore)
	}
}

func TestReleaseBeforeRetentionWindow(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)
	s.SetVerificationScore(oracle, 100)

	res := s.ReleasePayment(b, s.RetentionEndTick-1)
	if res.Applied {
		t.Fatal("release before retention end must be a no-op")
	}
	if res.Reason != ReasonRetentionPending {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonRetentionPending)
	}
	if s.IsPaid {
		t.Error("IsPaid set despite pending retention window")
	}
}

func TestScenarioLegitimate(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)

	if res := s.SetVerificationScore(oracle, 96); !res.Applied {
		t.Fatalf("score refused: %s", res.Reason)
	}
	if res := s.ReleasePayment(b, s.RetentionEndTick); !res.Applied {
		t.Fatalf("release refused: %s", res.Reason)
	}

	if b[influencer] != 97_000 {
		t.Errorf("influencer received %d, want 97000", b[influencer])
	}
	if b[platform] != 3_000 {
		t.Errorf("platform received %d, want 3000", b[platform])
	}
	if !s.IsPaid || s.IsActive {
		t.Errorf("terminal flags wrong: paid=%v active=%v", s.IsPaid, s.IsActive)
	}
}

func TestScenarioFraud(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)

	s.SetVerificationScore(oracle, 42)
	if res := s.RefundFunds(b); !res.Applied {
		t.Fatalf("refund refused: %s", res.Reason)
	}

	if b[brand] != 100_000 {
		t.Errorf("brand received %d, want full deposit back", b[brand])
	}
	if !s.IsRefunded || s.IsActive {
		t.Errorf("terminal flags wrong: refunded=%v active=%v", s.IsRefunded, s.IsActive)
	}

	// Settlement is terminal: a later release stays a no-op.
	if res := s.ReleasePayment(b, s.RetentionEndTick+100); res.Applied {
		t.Fatal("release after refund must be a no-op")
	}
	if s.IsPaid {
		t.Error("IsPaid set on refunded escrow")
	}
}

func TestRefundRefusedForPassingScore(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)
	s.SetVerificationScore(oracle, 95)

	res := s.RefundFunds(b)
	if res.Applied {
		t.Fatal("refund permitted for passing score")
	}
	if res.Reason != ReasonScorePassing {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonScorePassing)
	}
}

// TestRandomOperationSequences drives the machine with arbitrary operation
// orderings and checks the invariants that must hold at every observable
// state.
func TestRandomOperationSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for seq := 0; seq < 500; seq++ {
		b := book{brand: 1_000_000}
		s := New(escrowAddr, platform)
		firstOracle := ""
		scoreAt := -1

		for step := 0; step < 30; step++ {
			switch rng.Intn(6) {
			case 0:
				id := []string{oracle, stranger}[rng.Intn(2)]
				if res := s.SetOracleID(id); res.Applied && firstOracle == "" {
					firstOracle = id
				}
			case 1:
				s.Deposit(b, brand, influencer, int64(rng.Intn(200_000)-1000), rng.Intn(12), uint64(step))
			case 2:
				caller := []string{s.OracleID, stranger}[rng.Intn(2)]
				if res := s.SetVerificationScore(caller, rng.Intn(120)-10); res.Applied && scoreAt == -1 {
					scoreAt = s.VerificationScore
				}
			case 3:
				s.ReleasePayment(b, uint64(rng.Intn(400)))
			case 4:
				s.RefundFunds(b)
			case 5:
				s.SetOracleID(stranger)
			}

			if s.IsPaid && s.IsRefunded {
				t.Fatalf("seq %d step %d: both paid and refunded", seq, step)
			}
			if firstOracle != "" && s.OracleID != firstOracle {
				t.Fatalf("seq %d step %d: oracle id rewritten", seq, step)
			}
			if scoreAt != -1 && s.VerificationScore != scoreAt {
				t.Fatalf("seq %d step %d: score rewritten", seq, step)
			}
			if s.IsPaid && s.VerificationScore < s.RequiredScore {
				t.Fatalf("seq %d step %d: paid with failing score", seq, step)
			}
			if s.IsRefunded && s.VerificationScore >= s.RequiredScore {
				t.Fatalf("seq %d step %d: refunded with passing score", seq, step)
			}
		}
	}
}

func TestValidIdentity(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{ident(0xb1), true},
		{"", false},
		{ident(0xb1)[:59], false},
		{ident(0xb1) + "a", false},
		{fmt.Sprintf("%060X", 0xb1), false}, // uppercase not allowed
		{"g" + ident(0xb1)[1:], false},
	}
	for _, tt := range tests {
		if got := ValidIdentity(tt.id); got != tt.want {
			t.Errorf("ValidIdentity(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestStateBinaryRoundTrip(t *testing.T) {
	b := book{}
	s := fundedEscrow(t, b)
	s.SetVerificationScore(oracle, 96)

	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != encodedLen {
		t.Fatalf("encoded length = %d, want %d", len(data), encodedLen)
	}

	var out State
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}

	// Address and platform are bound at registration; the wire form carries
	// platform but not the address key.
	out.Address = s.Address
	if out.BrandID != s.BrandID || out.OracleID != s.OracleID ||
		out.EscrowBalance != s.EscrowBalance || out.PlatformFee != s.PlatformFee ||
		out.VerificationScore != s.VerificationScore ||
		out.RetentionEndTick != s.RetentionEndTick ||
		out.IsActive != s.IsActive || out.IsVerified != s.IsVerified {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, *s)
	}
}

func TestStateBinaryRejectsBadInput(t *testing.T) {
	var s State
	if err := s.UnmarshalBinary(make([]byte, 10)); err == nil {
		t.Error("short input accepted")
	}
	bad := make([]byte, encodedLen)
	bad[0] = 99
	if err := s.UnmarshalBinary(bad); err == nil {
		t.Error("unknown version accepted")
	}
}
