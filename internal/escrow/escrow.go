package escrow

import "fmt"

const (
	// RequiredScore is the minimum verification score that allows payment release.
	RequiredScore = 95

	// PlatformFeeBPS is the platform's cut of every deposit, in basis points.
	PlatformFeeBPS = 300

	// MinRetentionDays is the shortest retention window a brand may choose.
	MinRetentionDays = 7

	// TicksPerDay converts retention days into checkpoint units.
	// Checkpoints finalize hourly on this ledger.
	TicksPerDay = 24

	// IdentityLen is the fixed length of a ledger identity string.
	IdentityLen = 60
)

// Guard refusal reasons. These are observable through Result but never
// change ledger-visible state; a refused operation is a no-op.
const (
	ReasonOracleAlreadySet  = "oracle already set"
	ReasonOracleNotSet      = "oracle not set"
	ReasonAlreadyActive     = "escrow already active"
	ReasonNotActive         = "escrow not active"
	ReasonTerminal          = "escrow already settled"
	ReasonZeroAmount        = "deposit amount must be positive"
	ReasonRetentionTooShort = "retention window below minimum"
	ReasonInsufficientFunds = "caller balance below deposit amount"
	ReasonNotOracle         = "caller is not the oracle"
	ReasonAlreadyVerified   = "score already set"
	ReasonScoreOutOfRange   = "score out of range"
	ReasonNotVerified       = "score not set"
	ReasonScoreBelowBar     = "score below required threshold"
	ReasonScorePassing      = "refund not permitted for passing score"
	ReasonRetentionPending  = "retention window not elapsed"
	ReasonTransferFailed    = "balance transfer failed"
)

// Accounts is the ledger's balance book. The ledger passes itself in while
// holding its own lock, so implementations need no locking of their own.
type Accounts interface {
	Balance(id string) int64
	Transfer(from, to string, amount int64) error
}

// Result reports whether an operation took effect. Guard failures refuse
// without mutating anything; the ledger surface stays a silent no-op while
// callers and tests can still see why.
type Result struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

func applied() Result            { return Result{Applied: true} }
func refused(reason string) Result { return Result{Reason: reason} }

// State is one campaign's escrow, owned by the ledger. All mutation happens
// through the five guarded operations; a failed guard leaves every field
// untouched. Once IsPaid or IsRefunded is set the state is terminal.
type State struct {
	Address    string
	PlatformID string

	BrandID      string
	InfluencerID string
	OracleID     string

	EscrowBalance int64
	PlatformFee   int64

	RequiredScore     int
	VerificationScore int

	DepositTick      uint64
	RetentionEndTick uint64

	OracleSet  bool
	IsActive   bool
	IsVerified bool
	IsPaid     bool
	IsRefunded bool
}

// New returns an unfunded escrow bound to a ledger address and the platform
// fee account. The instance becomes active at the first successful Deposit.
func New(address, platformID string) *State {
	return &State{
		Address:       address,
		PlatformID:    platformID,
		RequiredScore: RequiredScore,
	}
}

func (s *State) terminal() bool { return s.IsPaid || s.IsRefunded }

// SetOracleID binds the oracle identity. First writer wins; every later
// call is a no-op regardless of caller.
func (s *State) SetOracleID(id string) Result {
	if s.terminal() {
		return refused(ReasonTerminal)
	}
	if s.OracleSet {
		return refused(ReasonOracleAlreadySet)
	}
	s.OracleID = id
	s.OracleSet = true
	return applied()
}

// Deposit locks the caller's funds for the influencer and opens the
// retention window. The platform fee is carved out of the deposit up front.
func (s *State) Deposit(book Accounts, caller, influencerID string, amount int64, retentionDays int, nowTick uint64) Result {
	if s.terminal() {
		return refused(ReasonTerminal)
	}
	if !s.OracleSet {
		return refused(ReasonOracleNotSet)
	}
	if s.IsActive {
		return refused(ReasonAlreadyActive)
	}
	if amount <= 0 {
		return refused(ReasonZeroAmount)
	}
	if retentionDays < MinRetentionDays {
		return refused(ReasonRetentionTooShort)
	}
	if book.Balance(caller) < amount {
		return refused(ReasonInsufficientFunds)
	}
	if err := book.Transfer(caller, s.Address, amount); err != nil {
		return refused(ReasonTransferFailed)
	}

	s.PlatformFee = platformFee(amount)
	s.EscrowBalance = amount - s.PlatformFee
	s.BrandID = caller
	s.InfluencerID = influencerID
	s.DepositTick = nowTick
	s.RetentionEndTick = nowTick + uint64(retentionDays)*TicksPerDay
	s.IsActive = true
	return applied()
}

// SetVerificationScore records the oracle's verdict. Write-once, and only
// the bound oracle identity may write it.
func (s *State) SetVerificationScore(caller string, score int) Result {
	if s.terminal() {
		return refused(ReasonTerminal)
	}
	if caller != s.OracleID || !s.OracleSet {
		return refused(ReasonNotOracle)
	}
	if !s.IsActive {
		return refused(ReasonNotActive)
	}
	if s.IsVerified {
		return refused(ReasonAlreadyVerified)
	}
	if score < 0 || score > 100 {
		return refused(ReasonScoreOutOfRange)
	}
	s.VerificationScore = score
	s.IsVerified = true
	return applied()
}

// ReleasePayment pays the influencer and the platform. Callable by anyone;
// the guards, not the caller identity, carry the correctness burden.
func (s *State) ReleasePayment(book Accounts, nowTick uint64) Result {
	if s.terminal() {
		return refused(ReasonTerminal)
	}
	if !s.IsVerified {
		return refused(ReasonNotVerified)
	}
	if s.VerificationScore < s.RequiredScore {
		return refused(ReasonScoreBelowBar)
	}
	if nowTick < s.RetentionEndTick {
		return refused(ReasonRetentionPending)
	}
	if err := book.Transfer(s.Address, s.InfluencerID, s.EscrowBalance); err != nil {
		return refused(ReasonTransferFailed)
	}
	if err := book.Transfer(s.Address, s.PlatformID, s.PlatformFee); err != nil {
		// Roll the first leg back so a half-paid escrow is impossible.
		_ = book.Transfer(s.InfluencerID, s.Address, s.EscrowBalance)
		return refused(ReasonTransferFailed)
	}
	s.IsPaid = true
	s.IsActive = false
	return applied()
}

// RefundFunds returns the full original deposit, fee included, to the brand.
// Only permitted for a failing score; a passing score can never be refunded.
func (s *State) RefundFunds(book Accounts) Result {
	if s.terminal() {
		return refused(ReasonTerminal)
	}
	if !s.IsVerified {
		return refused(ReasonNotVerified)
	}
	if s.VerificationScore >= s.RequiredScore {
		return refused(ReasonScorePassing)
	}
	if err := book.Transfer(s.Address, s.BrandID, s.EscrowBalance+s.PlatformFee); err != nil {
		return refused(ReasonTransferFailed)
	}
	s.IsRefunded = true
	s.IsActive = false
	return applied()
}

// Snapshot is the read-only view returned by getContractState.
type Snapshot struct {
	Address           string `json:"address"`
	BrandID           string `json:"brand_id"`
	InfluencerID      string `json:"influencer_id"`
	OracleID          string `json:"oracle_id"`
	PlatformID        string `json:"platform_id"`
	EscrowBalance     int64  `json:"escrow_balance"`
	PlatformFee       int64  `json:"platform_fee"`
	RequiredScore     int    `json:"required_score"`
	VerificationScore int    `json:"verification_score"`
	DepositTick       uint64 `json:"deposit_tick"`
	RetentionEndTick  uint64 `json:"retention_end_tick"`
	OracleSet         bool   `json:"oracle_set"`
	IsActive          bool   `json:"is_active"`
	IsVerified        bool   `json:"is_verified"`
	IsPaid            bool   `json:"is_paid"`
	IsRefunded        bool   `json:"is_refunded"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Address:           s.Address,
		BrandID:           s.BrandID,
		InfluencerID:      s.InfluencerID,
		OracleID:          s.OracleID,
		PlatformID:        s.PlatformID,
		EscrowBalance:     s.EscrowBalance,
		PlatformFee:       s.PlatformFee,
		RequiredScore:     s.RequiredScore,
		VerificationScore: s.VerificationScore,
		DepositTick:       s.DepositTick,
		RetentionEndTick:  s.RetentionEndTick,
		OracleSet:         s.OracleSet,
		IsActive:          s.IsActive,
		IsVerified:        s.IsVerified,
		IsPaid:            s.IsPaid,
		IsRefunded:        s.IsRefunded,
	}
}

// platformFee rounds amount*fee to the nearest minor unit, half up.
func platformFee(amount int64) int64 {
	return (amount*PlatformFeeBPS + 5000) / 10000
}

// ValidIdentity reports whether id is a well-formed ledger identity:
// exactly 60 lowercase hex characters.
func ValidIdentity(id string) bool {
	if len(id) != IdentityLen {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// CheckIdentity is ValidIdentity with an error for call sites that wrap.
func CheckIdentity(id string) error {
	if !ValidIdentity(id) {
		return fmt.Errorf("identity must be %d lowercase hex characters", IdentityLen)
	}
	return nil
}
