package game

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	GuessMin = 1
	GuessMax = 10
)

var (
	ErrGuessOutOfRange = errors.New("guess out of range")
	ErrInvalidStake    = errors.New("invalid stake")
)

// Attempt is a single play: the guessed number and the fixed stake sent with it
type Attempt struct {
	Guess int64
	Stake *big.Int
}

// NewAttempt validates guess and stake. Nothing is clamped: an out of range
// guess is rejected so no transaction is ever built for it.
func NewAttempt(guess int64, stake *big.Int) (*Attempt, error) {
	if guess < GuessMin || guess > GuessMax {
		return nil, fmt.Errorf("%w: %d not in [%d,%d]", ErrGuessOutOfRange, guess, GuessMin, GuessMax)
	}
	if stake == nil || stake.Sign() <= 0 {
		return nil, ErrInvalidStake
	}
	return &Attempt{Guess: guess, Stake: new(big.Int).Set(stake)}, nil
}

// ToDetails returns attempt details for logging
func (a *Attempt) ToDetails() map[string]interface{} {
	return map[string]interface{}{
		"guess":     a.Guess,
		"stake_wei": a.Stake.String(),
	}
}
