package domain

import (
	"math/big"
	"time"
)

// Phase - stage of a play cycle
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseSubmitting Phase = "submitting"
	PhaseConfirming Phase = "confirming"
	PhaseRefreshing Phase = "refreshing"
)

// MessageKey identifies a user-visible status text; the text itself lives in the locale tables.
type MessageKey string

const (
	MsgWalletUnavailable   MessageKey = "wallet_unavailable"
	MsgConnectionRejected  MessageKey = "connection_rejected"
	MsgGuessOutOfRange     MessageKey = "guess_out_of_range"
	MsgContractNotReady    MessageKey = "contract_not_ready"
	MsgSendingTransaction  MessageKey = "sending_transaction"
	MsgConfirming          MessageKey = "confirming_transaction"
	MsgTransactionComplete MessageKey = "transaction_complete"
	MsgPlayFailed          MessageKey = "play_failed"
	MsgBusy                MessageKey = "busy"
	MsgRateLimited         MessageKey = "rate_limited"
)

// Status is the message shown under the game controls
type Status struct {
	Key    MessageKey        `json:"key"`
	Params map[string]string `json:"params,omitempty"`
}

// LastResult - outcome of the account's most recent game as reported by the contract
type LastResult struct {
	Won      bool     `json:"won"`
	Guess    int64    `json:"guess"`
	Prize    string   `json:"prize"`
	PrizeWei *big.Int `json:"-"`
}

// SessionState - everything the UI renders for one connected wallet
type SessionState struct {
	Connected    bool        `json:"connected"`
	Account      string      `json:"account,omitempty"`
	PrizePool    string      `json:"prize_pool"`
	PrizePoolWei *big.Int    `json:"-"`
	LastResult   *LastResult `json:"last_result,omitempty"`
	PendingGuess *int64      `json:"pending_guess,omitempty"`
	Busy         bool        `json:"busy"`
	Phase        Phase       `json:"phase"`
	Status       *Status     `json:"status,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewSessionState returns the state of a fresh, disconnected session
func NewSessionState() SessionState {
	return SessionState{
		PrizePool: "0.0",
		Phase:     PhaseIdle,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a deep copy safe to hand to other goroutines
func (s SessionState) Clone() SessionState {
	out := s
	if s.PrizePoolWei != nil {
		out.PrizePoolWei = new(big.Int).Set(s.PrizePoolWei)
	}
	if s.LastResult != nil {
		lr := *s.LastResult
		if lr.PrizeWei != nil {
			lr.PrizeWei = new(big.Int).Set(lr.PrizeWei)
		}
		out.LastResult = &lr
	}
	if s.PendingGuess != nil {
		g := *s.PendingGuess
		out.PendingGuess = &g
	}
	if s.Status != nil {
		st := Status{Key: s.Status.Key}
		if s.Status.Params != nil {
			st.Params = make(map[string]string, len(s.Status.Params))
			for k, v := range s.Status.Params {
				st.Params[k] = v
			}
		}
		out.Status = &st
	}
	return out
}
