// Package ledger is the I/O boundary to the checkpoint ledger. Two
// implementations exist: an HTTP client for a real endpoint and a
// deterministic in-memory ledger for development and tests. Selection is
// configuration-driven; nothing sniffs error strings at runtime.
package ledger

import (
	"context"
	"errors"

	"github.com/adtrust/escrow-bridge/internal/escrow"
	"github.com/adtrust/escrow-bridge/internal/txcodec"
)

var (
	// ErrUnavailable signals the ledger endpoint could not be reached or
	// answered with a server-side failure. Callers retry or surface it;
	// nothing ever hangs waiting.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrNotFound signals a transaction or escrow the ledger has no record of.
	ErrNotFound = errors.New("not found")

	// ErrExpiredTarget signals a broadcast whose target checkpoint has
	// already finalized; the ledger refuses it outright.
	ErrExpiredTarget = errors.New("target checkpoint already finalized")
)

// CheckpointInfo is the ledger's current finality position.
type CheckpointInfo struct {
	Checkpoint uint64 `json:"checkpoint"`
	Epoch      uint64 `json:"epoch"`
}

// TxStatus is a broadcast transaction's lifecycle state.
type TxStatus string

const (
	TxPending  TxStatus = "pending"
	TxExecuted TxStatus = "executed"
	TxFailed   TxStatus = "failed"
)

// Transaction is the ledger's record of a broadcast envelope. A guard
// refusal still counts as executed with Applied=false; Failed is reserved
// for transactions the ledger could not run at all.
type Transaction struct {
	ID         string                  `json:"id"`
	Envelope   txcodec.SignedEnvelope  `json:"envelope"`
	Status     TxStatus                `json:"status"`
	ExecutedAt uint64                  `json:"executed_at,omitempty"`
	Applied    bool                    `json:"applied"`
	Reason     string                  `json:"reason,omitempty"`
}

// Accessor is everything the rest of the system needs from the ledger:
// four reads, an escrow snapshot query, and one write. Every method carries
// a context and degrades to an explicit error instead of blocking.
type Accessor interface {
	CurrentCheckpoint(ctx context.Context) (CheckpointInfo, error)
	Balance(ctx context.Context, id string) (int64, error)
	Broadcast(ctx context.Context, env txcodec.SignedEnvelope) (string, error)
	Transaction(ctx context.Context, id string) (*Transaction, error)
	TransactionsAt(ctx context.Context, checkpoint uint64) ([]Transaction, error)
	EscrowSnapshot(ctx context.Context, address string) (*escrow.Snapshot, error)
}
