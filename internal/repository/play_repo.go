package repository

import (
	"context"

	"guessing_game/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlayRepository struct {
	db *pgxpool.Pool
}

func NewPlayRepository(db *pgxpool.Pool) *PlayRepository {
	return &PlayRepository{db: db}
}

// Record stores a finished play
func (r *PlayRepository) Record(ctx context.Context, p *domain.PlayRecord) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO plays
			(session_id, account, contract, guess, stake_wei, tx_hash, status, reason)
		 VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8)
		 RETURNING id, created_at`,
		p.SessionID,
		p.Account,
		p.Contract,
		p.Guess,
		p.StakeWei,
		p.TxHash,
		string(p.Status),
		p.Reason,
	).Scan(&p.ID, &p.CreatedAt)
}

// GetByAccount returns the account's most recent plays, newest first
func (r *PlayRepository) GetByAccount(ctx context.Context, account string, limit int) ([]*domain.PlayRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, account, contract, guess, stake_wei::text, tx_hash, status, reason, created_at
		 FROM plays
		 WHERE account = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		account, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPlays(rows)
}

// PlayStats - per-account play counters
type PlayStats struct {
	Account   string `json:"account"`
	Total     int    `json:"total"`
	Confirmed int    `json:"confirmed"`
	Reverted  int    `json:"reverted"`
	Failed    int    `json:"failed"`
	StakedWei string `json:"staked_wei"`
}

// GetStats returns counters for an account; staked covers confirmed plays only
func (r *PlayRepository) GetStats(ctx context.Context, account string) (*PlayStats, error) {
	stats := &PlayStats{Account: account}

	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'reverted'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(stake_wei) FILTER (WHERE status = 'confirmed'), 0)::text
		 FROM plays
		 WHERE account = $1`,
		account,
	).Scan(&stats.Total, &stats.Confirmed, &stats.Reverted, &stats.Failed, &stats.StakedWei)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func scanPlays(rows pgx.Rows) ([]*domain.PlayRecord, error) {
	var result []*domain.PlayRecord
	for rows.Next() {
		var p domain.PlayRecord
		var status string
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Account, &p.Contract, &p.Guess, &p.StakeWei,
			&p.TxHash, &status, &p.Reason, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Status = domain.PlayStatus(status)
		result = append(result, &p)
	}
	return result, rows.Err()
}
