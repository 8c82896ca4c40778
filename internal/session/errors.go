package session

import (
	"errors"

	"guessing_game/internal/chain"
)

var (
	ErrWalletUnavailable  = chain.ErrWalletUnavailable
	ErrConnectionRejected = chain.ErrConnectionRejected
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotConnected       = errors.New("wallet not connected")
	ErrContractCallFailed = errors.New("contract call failed")
	ErrReadFailed         = errors.New("contract read failed")
	ErrBusy               = errors.New("a play is already in progress")
)

// CallError is a failed play carrying the text shown to the player:
// the revert reason when the contract gave one, otherwise the error message.
type CallError struct {
	Reason string
	Err    error
}

func (e *CallError) Error() string {
	return "contract call failed: " + e.Reason
}

func (e *CallError) Unwrap() []error {
	return []error{ErrContractCallFailed, e.Err}
}

func newCallError(err error) *CallError {
	reason, ok := chain.RevertReason(err)
	if !ok {
		reason = err.Error()
	}
	return &CallError{Reason: reason, Err: err}
}
