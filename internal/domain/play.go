package domain

import "time"

// PlayStatus - final state of a submitted play
type PlayStatus string

const (
	PlayStatusConfirmed PlayStatus = "confirmed"
	PlayStatusReverted  PlayStatus = "reverted"
	PlayStatusFailed    PlayStatus = "failed"
)

// PlayRecord - one play transaction as seen by this client
type PlayRecord struct {
	ID        int64      `db:"id" json:"id"`
	SessionID string     `db:"session_id" json:"session_id"`
	Account   string     `db:"account" json:"account"`
	Contract  string     `db:"contract" json:"contract"`
	Guess     int64      `db:"guess" json:"guess"`
	StakeWei  string     `db:"stake_wei" json:"stake_wei"`
	TxHash    *string    `db:"tx_hash" json:"tx_hash,omitempty"`
	Status    PlayStatus `db:"status" json:"status"`
	Reason    string     `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
