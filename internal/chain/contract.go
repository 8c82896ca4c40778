package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// GameABI is the part of the NumberGuessingGame interface the client consumes.
const GameABI = `[
	{"inputs":[],"stateMutability":"nonpayable","type":"constructor"},
	{"inputs":[{"internalType":"uint256","name":"guess","type":"uint256"}],"name":"play","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[],"name":"depositPrizePool","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[],"name":"getContractBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"player","type":"address"}],"name":"getLastResult","outputs":[{"internalType":"bool","name":"","type":"bool"},{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"prizePool","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	ErrUnexpectedOutput = errors.New("unexpected contract output")

	parsedGameABI = mustParseABI(GameABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("parse game abi: %v", err))
	}
	return parsed
}

// ParsedGameABI returns the parsed contract interface
func ParsedGameABI() abi.ABI {
	return parsedGameABI
}

// GameResult is the raw (won, guess, prize) tuple returned by getLastResult
type GameResult struct {
	Won   bool
	Guess *big.Int
	Prize *big.Int
}

// GameContract is a handle to a deployed NumberGuessingGame
type GameContract struct {
	address common.Address
	backend Backend
	bound   *bind.BoundContract
}

// NewGameContract binds the contract at address
func NewGameContract(address common.Address, backend Backend) *GameContract {
	return &GameContract{
		address: address,
		backend: backend,
		bound:   bind.NewBoundContract(address, parsedGameABI, backend, backend, backend),
	}
}

// Address returns the bound contract address
func (g *GameContract) Address() common.Address {
	return g.address
}

// Play submits play(guess) with stake attached
func (g *GameContract) Play(ctx context.Context, signer *bind.TransactOpts, guess int64, stake *big.Int) (*types.Transaction, error) {
	opts := withValue(ctx, signer, stake)
	return g.bound.Transact(opts, "play", big.NewInt(guess))
}

// DepositPrizePool funds the prize pool with amount
func (g *GameContract) DepositPrizePool(ctx context.Context, signer *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	opts := withValue(ctx, signer, amount)
	return g.bound.Transact(opts, "depositPrizePool")
}

// ContractBalance reads getContractBalance()
func (g *GameContract) ContractBalance(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, "getContractBalance")
}

// PrizePool reads the prizePool() accessor
func (g *GameContract) PrizePool(ctx context.Context) (*big.Int, error) {
	return g.callUint(ctx, "prizePool")
}

// LastResult reads getLastResult(account)
func (g *GameContract) LastResult(ctx context.Context, account common.Address) (GameResult, error) {
	var out []interface{}
	if err := g.bound.Call(&bind.CallOpts{Context: ctx}, &out, "getLastResult", account); err != nil {
		return GameResult{}, err
	}
	return decodeGameResult(out)
}

// Confirm waits for tx to be mined. A mined but failed transaction is replayed
// at its block to recover the revert reason.
func (g *GameContract) Confirm(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, g.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return receipt, nil
	}

	return receipt, &RevertError{
		TxHash: tx.Hash(),
		Reason: g.replayReason(ctx, from, tx, receipt.BlockNumber),
	}
}

func (g *GameContract) replayReason(ctx context.Context, from common.Address, tx *types.Transaction, block *big.Int) string {
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err := g.backend.CallContract(ctx, msg, block)
	if err == nil {
		return ""
	}
	if reason, ok := RevertReason(err); ok {
		return reason
	}
	return ""
}

func (g *GameContract) callUint(ctx context.Context, method string) (*big.Int, error) {
	var out []interface{}
	if err := g.bound.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, method, out[0])
	}
	return v, nil
}

func decodeGameResult(out []interface{}) (GameResult, error) {
	if len(out) != 3 {
		return GameResult{}, fmt.Errorf("%w: getLastResult returned %d values", ErrUnexpectedOutput, len(out))
	}
	won, ok := out[0].(bool)
	if !ok {
		return GameResult{}, fmt.Errorf("%w: won is %T", ErrUnexpectedOutput, out[0])
	}
	guess, ok := out[1].(*big.Int)
	if !ok {
		return GameResult{}, fmt.Errorf("%w: guess is %T", ErrUnexpectedOutput, out[1])
	}
	prize, ok := out[2].(*big.Int)
	if !ok {
		return GameResult{}, fmt.Errorf("%w: prize is %T", ErrUnexpectedOutput, out[2])
	}
	return GameResult{Won: won, Guess: guess, Prize: prize}, nil
}

func withValue(ctx context.Context, signer *bind.TransactOpts, value *big.Int) *bind.TransactOpts {
	opts := *signer
	opts.Context = ctx
	opts.Value = new(big.Int).Set(value)
	return &opts
}
