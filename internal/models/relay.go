package models

import "time"

// RelayAttempt is one persisted relay attempt, confirmed or not.
type RelayAttempt struct {
	ID             string     `json:"id"`
	PostURL        string     `json:"post_url"`
	Scenario       string     `json:"scenario,omitempty"`
	EscrowAddress  string     `json:"escrow_address"`
	Score          *int       `json:"score,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
	TxID           string     `json:"tx_id,omitempty"`
	Confirmed      bool       `json:"confirmed"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMsg       string     `json:"error_msg,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
