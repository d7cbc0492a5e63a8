package repositories

import (
	"context"

	"github.com/adtrust/escrow-bridge/internal/models"
	"github.com/adtrust/escrow-bridge/internal/relay"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RelayRepo struct {
	pool *pgxpool.Pool
}

func NewRelayRepo(pool *pgxpool.Pool) *RelayRepo {
	return &RelayRepo{pool: pool}
}

// RecordAttempt implements relay.AttemptRecorder.
func (r *RelayRepo) RecordAttempt(ctx context.Context, out relay.Outcome, errKind string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relay_attempts (id, post_url, scenario, escrow_address, score, recommendation, tx_id, confirmed, error_kind, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`, out.AttemptID, out.PostURL, out.Scenario, out.EscrowAddress, out.Score,
		out.Recommendation, out.TxID, out.Confirmed, errKind, out.CompletedAt)
	return err
}

func (r *RelayRepo) ListByEscrow(ctx context.Context, escrowAddress string, limit int) ([]models.RelayAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, post_url, scenario, escrow_address, score, recommendation, tx_id, confirmed, error_kind, error_msg, created_at, completed_at
		FROM relay_attempts
		WHERE escrow_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, escrowAddress, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

func (r *RelayRepo) ListRecent(ctx context.Context, limit int) ([]models.RelayAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, post_url, scenario, escrow_address, score, recommendation, tx_id, confirmed, error_kind, error_msg, created_at, completed_at
		FROM relay_attempts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAttempts(rows pgxRows) ([]models.RelayAttempt, error) {
	var attempts []models.RelayAttempt
	for rows.Next() {
		var a models.RelayAttempt
		if err := rows.Scan(&a.ID, &a.PostURL, &a.Scenario, &a.EscrowAddress, &a.Score,
			&a.Recommendation, &a.TxID, &a.Confirmed, &a.ErrorKind, &a.ErrorMsg,
			&a.CreatedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
