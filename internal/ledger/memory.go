package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/adtrust/escrow-bridge/internal/escrow"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
	"go.uber.org/zap"
)

// checkpointsPerEpoch mirrors the devnet ledger parameters.
const checkpointsPerEpoch = 720

// Memory is the deterministic in-memory ledger. It owns account balances
// and escrow contract instances, verifies envelope signatures, and executes
// accepted transactions at checkpoint advancement. One mutex serializes
// every mutation, which is exactly the serialization guarantee the real
// ledger provides for concurrent procedure calls.
type Memory struct {
	mu           sync.Mutex
	checkpoint   uint64
	balances     map[string]int64
	escrows      map[string]*escrow.State
	txs          map[string]*Transaction
	byCheckpoint map[uint64][]string
	pending      []string
	log          *zap.Logger
}

func NewMemory(log *zap.Logger) *Memory {
	return &Memory{
		checkpoint:   1,
		balances:     make(map[string]int64),
		escrows:      make(map[string]*escrow.State),
		txs:          make(map[string]*Transaction),
		byCheckpoint: make(map[uint64][]string),
		log:          log,
	}
}

// RegisterEscrow creates an empty escrow contract instance at an address.
func (m *Memory) RegisterEscrow(address, platformID string) error {
	if err := escrow.CheckIdentity(address); err != nil {
		return fmt.Errorf("escrow address: %w", err)
	}
	if err := escrow.CheckIdentity(platformID); err != nil {
		return fmt.Errorf("platform id: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.escrows[address]; ok {
		return fmt.Errorf("escrow %s already registered", address)
	}
	m.escrows[address] = escrow.New(address, platformID)
	return nil
}

// Fund is the devnet faucet.
func (m *Memory) Fund(id string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] += amount
}

// Balance implements escrow.Accounts; called with m.mu held during execution.
func (m *Memory) balanceLocked(id string) int64 { return m.balances[id] }

func (m *Memory) transferLocked(from, to string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative transfer")
	}
	if m.balances[from] < amount {
		return fmt.Errorf("insufficient funds")
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

// book adapts the locked balance map to the escrow.Accounts interface.
type book struct{ m *Memory }

func (b book) Balance(id string) int64                    { return b.m.balanceLocked(id) }
func (b book) Transfer(from, to string, amount int64) error { return b.m.transferLocked(from, to, amount) }

// AdvanceCheckpoint finalizes the current checkpoint and executes every
// accepted transaction against its escrow contract. Returns the new
// checkpoint index.
func (m *Memory) AdvanceCheckpoint() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoint++
	executed := m.pending
	m.pending = nil

	for _, id := range executed {
		tx := m.txs[id]
		if tx.Envelope.TargetCheckpoint < m.checkpoint {
			tx.Status = TxFailed
			tx.Reason = ErrExpiredTarget.Error()
			continue
		}
		m.executeLocked(tx)
		m.byCheckpoint[m.checkpoint] = append(m.byCheckpoint[m.checkpoint], id)
	}
	return m.checkpoint
}

func (m *Memory) executeLocked(tx *Transaction) {
	tx.Status = TxExecuted
	tx.ExecutedAt = m.checkpoint

	st, ok := m.escrows[tx.Envelope.DestID]
	if !ok {
		tx.Status = TxFailed
		tx.Reason = "unknown escrow contract"
		return
	}

	caller := tx.Envelope.SourceID
	var res escrow.Result
	switch tx.Envelope.ProcedureID {
	case txcodec.ProcedureSetOracle:
		oracleID, err := txcodec.DecodeSetOracle(tx.Envelope.Payload)
		if err != nil {
			tx.Status, tx.Reason = TxFailed, err.Error()
			return
		}
		res = st.SetOracleID(oracleID)
	case txcodec.ProcedureDeposit:
		influencerID, retentionDays, err := txcodec.DecodeDeposit(tx.Envelope.Payload)
		if err != nil {
			tx.Status, tx.Reason = TxFailed, err.Error()
			return
		}
		res = st.Deposit(book{m}, caller, influencerID, tx.Envelope.Amount, retentionDays, m.checkpoint)
	case txcodec.ProcedureSetScore:
		score, err := txcodec.DecodeScorePayload(tx.Envelope.Payload)
		if err != nil {
			tx.Status, tx.Reason = TxFailed, err.Error()
			return
		}
		res = st.SetVerificationScore(caller, score)
	case txcodec.ProcedureRelease:
		res = st.ReleasePayment(book{m}, m.checkpoint)
	case txcodec.ProcedureRefund:
		res = st.RefundFunds(book{m})
	default:
		tx.Status, tx.Reason = TxFailed, fmt.Sprintf("unknown procedure %d", tx.Envelope.ProcedureID)
		return
	}

	tx.Applied = res.Applied
	tx.Reason = res.Reason
	if m.log != nil {
		m.log.Debug("transaction executed",
			zap.String("tx_id", tx.ID),
			zap.Uint32("procedure", tx.Envelope.ProcedureID),
			zap.Bool("applied", res.Applied),
			zap.String("reason", res.Reason),
		)
	}
}

func (m *Memory) CurrentCheckpoint(ctx context.Context) (CheckpointInfo, error) {
	if err := ctx.Err(); err != nil {
		return CheckpointInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return CheckpointInfo{Checkpoint: m.checkpoint, Epoch: m.checkpoint / checkpointsPerEpoch}, nil
}

func (m *Memory) Balance(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[id], nil
}

// Broadcast verifies the signature and the target checkpoint, then queues
// the transaction for the next advancement. The returned id is stable for
// a given signed envelope.
func (m *Memory) Broadcast(ctx context.Context, env txcodec.SignedEnvelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := txcodec.VerifyEnvelope(env); err != nil {
		return "", fmt.Errorf("broadcast rejected: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if env.TargetCheckpoint < m.checkpoint {
		return "", ErrExpiredTarget
	}

	id := txcodec.TxID(env)
	if existing, ok := m.txs[id]; ok {
		// Re-broadcast of an identical signed envelope is idempotent.
		return existing.ID, nil
	}

	m.txs[id] = &Transaction{ID: id, Envelope: env, Status: TxPending}
	m.pending = append(m.pending, id)
	return id, nil
}

func (m *Memory) Transaction(ctx context.Context, id string) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *Memory) TransactionsAt(ctx context.Context, checkpoint uint64) ([]Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byCheckpoint[checkpoint]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.txs[id])
	}
	return out, nil
}

func (m *Memory) EscrowSnapshot(ctx context.Context, address string) (*escrow.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.escrows[address]
	if !ok {
		return nil, ErrNotFound
	}
	snap := st.Snapshot()
	return &snap, nil
}

// EscrowWire returns the canonical binary form of an escrow state, exposed
// by the devledger alongside the JSON snapshot.
func (m *Memory) EscrowWire(address string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.escrows[address]
	if !ok {
		return nil, ErrNotFound
	}
	return st.MarshalBinary()
}

var _ Accessor = (*Memory)(nil)
