package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/domain"
	"guessing_game/internal/game"
	"guessing_game/internal/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wallet performs the handshake with an account-holding signing agent
type Wallet interface {
	Handshake(ctx context.Context, req chain.HandshakeRequest) (*chain.Signer, error)
}

// Game is the deployed contract as seen by a session
type Game interface {
	Play(ctx context.Context, signer *bind.TransactOpts, guess int64, stake *big.Int) (*types.Transaction, error)
	Confirm(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Receipt, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
	LastResult(ctx context.Context, account common.Address) (chain.GameResult, error)
}

// Observer is notified with a snapshot after every state change
type Observer interface {
	SessionChanged(id string, st domain.SessionState)
}

// Recorder stores finished plays
type Recorder interface {
	Record(ctx context.Context, rec *domain.PlayRecord) error
}

// Options configures a Controller
type Options struct {
	ID          string
	Stake       *big.Int
	Contract    common.Address
	TxTimeout   time.Duration
	ReadTimeout time.Duration
	Observer    Observer
	Recorder    Recorder
}

// Controller owns the state of one session and sequences its contract calls.
// At most one play runs at a time; the busy flag is taken on entry and
// released on every exit path.
type Controller struct {
	id          string
	wallet      Wallet
	game        Game
	stake       *big.Int
	contract    common.Address
	txTimeout   time.Duration
	readTimeout time.Duration
	observer    Observer
	recorder    Recorder

	busy atomic.Bool

	mu     sync.RWMutex
	state  domain.SessionState
	signer *chain.Signer
}

// NewController creates a disconnected session
func NewController(wallet Wallet, g Game, opts Options) *Controller {
	stake := opts.Stake
	if stake == nil {
		stake = new(big.Int)
	}
	return &Controller{
		id:          opts.ID,
		wallet:      wallet,
		game:        g,
		stake:       new(big.Int).Set(stake),
		contract:    opts.Contract,
		txTimeout:   opts.TxTimeout,
		readTimeout: opts.ReadTimeout,
		observer:    opts.Observer,
		recorder:    opts.Recorder,
		state:       domain.NewSessionState(),
	}
}

// ID returns the session id
func (c *Controller) ID() string {
	return c.id
}

// Stake returns the amount attached to every play
func (c *Controller) Stake() *big.Int {
	return new(big.Int).Set(c.stake)
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() domain.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// Account returns the connected account
func (c *Controller) Account() (common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.Account, true
}

// Busy reports whether a play is in flight
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Connect performs the wallet handshake, then loads the prize pool and the
// last result. Read failures after a successful handshake are not reported.
func (c *Controller) Connect(ctx context.Context, req chain.HandshakeRequest) error {
	if c.busy.Load() {
		return ErrBusy
	}

	signer, err := c.wallet.Handshake(ctx, req)
	if err != nil {
		if errors.Is(err, ErrWalletUnavailable) {
			connectsTotal.WithLabelValues("unavailable").Inc()
			c.setStatus(domain.MsgWalletUnavailable, nil)
			logger.Warn("wallet unavailable", "session", c.id, "error", err)
			return err
		}
		if !errors.Is(err, ErrConnectionRejected) {
			err = fmt.Errorf("%w: %v", ErrConnectionRejected, err)
		}
		connectsTotal.WithLabelValues("rejected").Inc()
		c.setStatus(domain.MsgConnectionRejected, nil)
		logger.Warn("connection error", "session", c.id, "error", err)
		return err
	}

	c.mu.Lock()
	c.signer = signer
	c.mu.Unlock()

	c.update(func(s *domain.SessionState) {
		s.Connected = true
		s.Account = signer.Account.Hex()
		s.Status = nil
	})
	connectsTotal.WithLabelValues("connected").Inc()
	logger.Info("wallet connected", "session", c.id, "account", signer.Account.Hex())

	_ = c.RefreshPrizePool(ctx)
	_ = c.FetchLastResult(ctx)
	return nil
}

// RefreshPrizePool reads the contract balance. On failure the last known
// value stays in place and no status message is set.
func (c *Controller) RefreshPrizePool(ctx context.Context) error {
	if _, ok := c.Account(); !ok {
		return ErrNotConnected
	}

	rctx, cancel := c.readContext(ctx)
	defer cancel()

	balance, err := c.game.ContractBalance(rctx)
	if err != nil {
		readFailures.WithLabelValues("prize_pool").Inc()
		logger.Warn("error fetching prize pool", "session", c.id, "error", err)
		return fmt.Errorf("%w: prize pool: %v", ErrReadFailed, err)
	}

	c.update(func(s *domain.SessionState) {
		s.PrizePoolWei = balance
		s.PrizePool = chain.FormatEther(balance)
	})
	return nil
}

// FetchLastResult reads the connected account's last game. On failure the
// previous result (or none) stays in place.
func (c *Controller) FetchLastResult(ctx context.Context) error {
	account, ok := c.Account()
	if !ok {
		return ErrNotConnected
	}

	rctx, cancel := c.readContext(ctx)
	defer cancel()

	res, err := c.game.LastResult(rctx, account)
	if err != nil {
		readFailures.WithLabelValues("last_result").Inc()
		logger.Warn("failed to fetch last result", "session", c.id, "account", account.Hex(), "error", err)
		return fmt.Errorf("%w: last result: %v", ErrReadFailed, err)
	}

	lr := &domain.LastResult{
		Won:      res.Won,
		PrizeWei: res.Prize,
		Prize:    chain.FormatEther(res.Prize),
	}
	if res.Guess != nil {
		lr.Guess = res.Guess.Int64()
	}

	c.update(func(s *domain.SessionState) {
		s.LastResult = lr
	})
	return nil
}

// Play runs one cycle: validating, submitting, confirming, refreshing, back to idle.
// A second call while one is in flight returns ErrBusy without touching state.
func (c *Controller) Play(ctx context.Context, guess int64) error {
	p, err := c.begin(guess)
	if err != nil {
		return err
	}
	return c.run(ctx, p)
}

// PlayAsync takes the busy token and validates before returning, so ErrBusy,
// ErrInvalidInput and ErrNotConnected are reported to the caller. The chain part
// of the cycle then runs in the background and done, when set, gets its outcome.
// The returned snapshot is the busy state the cycle starts from.
func (c *Controller) PlayAsync(ctx context.Context, guess int64, done func(error)) (domain.SessionState, error) {
	p, err := c.begin(guess)
	if err != nil {
		return c.Snapshot(), err
	}
	st := c.Snapshot()

	go func() {
		err := c.run(ctx, p)
		if done != nil {
			done(err)
		}
	}()
	return st, nil
}

type pendingPlay struct {
	attempt *game.Attempt
	signer  *chain.Signer
}

// begin takes the busy token and runs the local checks. The token is released
// again when a check fails.
func (c *Controller) begin(guess int64) (*pendingPlay, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	c.update(func(s *domain.SessionState) {
		s.Busy = true
		s.Phase = domain.PhaseValidating
		s.PendingGuess = &guess
	})

	attempt, err := game.NewAttempt(guess, c.stake)
	if err != nil {
		playsTotal.WithLabelValues("invalid_input").Inc()
		c.setStatus(domain.MsgGuessOutOfRange, nil)
		c.release()
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c.mu.RLock()
	signer := c.signer
	c.mu.RUnlock()
	if signer == nil {
		playsTotal.WithLabelValues("not_connected").Inc()
		c.setStatus(domain.MsgContractNotReady, nil)
		c.release()
		return nil, ErrNotConnected
	}

	return &pendingPlay{attempt: attempt, signer: signer}, nil
}

// run submits the play and waits for it; the busy token taken by begin is released on return.
func (c *Controller) run(ctx context.Context, p *pendingPlay) error {
	defer c.release()

	attempt, signer := p.attempt, p.signer

	if c.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.txTimeout)
		defer cancel()
	}

	c.update(func(s *domain.SessionState) {
		s.Phase = domain.PhaseSubmitting
		s.Status = &domain.Status{Key: domain.MsgSendingTransaction}
	})

	tx, err := c.game.Play(ctx, signer.Opts, attempt.Guess, attempt.Stake)
	if err != nil {
		return c.playFailed(ctx, attempt, signer, nil, err)
	}
	logger.Info("play submitted", "session", c.id, "account", signer.Account.Hex(), "attempt", attempt.ToDetails(), "tx", tx.Hash().Hex())

	c.update(func(s *domain.SessionState) {
		s.Phase = domain.PhaseConfirming
		s.Status = &domain.Status{Key: domain.MsgConfirming}
	})

	if _, err := c.game.Confirm(ctx, signer.Account, tx); err != nil {
		return c.playFailed(ctx, attempt, signer, tx, err)
	}

	playsTotal.WithLabelValues("confirmed").Inc()
	c.record(ctx, attempt, signer, tx, domain.PlayStatusConfirmed, "")

	c.update(func(s *domain.SessionState) {
		s.Phase = domain.PhaseRefreshing
		s.Status = &domain.Status{Key: domain.MsgTransactionComplete}
	})

	_ = c.RefreshPrizePool(ctx)
	_ = c.FetchLastResult(ctx)
	return nil
}

func (c *Controller) playFailed(ctx context.Context, attempt *game.Attempt, signer *chain.Signer, tx *types.Transaction, err error) error {
	callErr := newCallError(err)

	status := domain.PlayStatusFailed
	var re *chain.RevertError
	if errors.As(err, &re) {
		status = domain.PlayStatusReverted
	} else if _, ok := chain.RevertReason(err); ok {
		status = domain.PlayStatusReverted
	}

	playsTotal.WithLabelValues(string(status)).Inc()
	logger.Error("play error", "session", c.id, "guess", attempt.Guess, "error", err)

	c.record(ctx, attempt, signer, tx, status, callErr.Reason)
	c.setStatus(domain.MsgPlayFailed, map[string]string{"reason": callErr.Reason})
	return callErr
}

func (c *Controller) record(ctx context.Context, attempt *game.Attempt, signer *chain.Signer, tx *types.Transaction, status domain.PlayStatus, reason string) {
	if c.recorder == nil {
		return
	}

	rec := &domain.PlayRecord{
		SessionID: c.id,
		Account:   signer.Account.Hex(),
		Contract:  c.contract.Hex(),
		Guess:     attempt.Guess,
		StakeWei:  attempt.Stake.String(),
		Status:    status,
		Reason:    reason,
	}
	if tx != nil {
		h := tx.Hash().Hex()
		rec.TxHash = &h
	}

	// the play context may already be past its deadline
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.recorder.Record(rctx, rec); err != nil {
		logger.Warn("failed to record play", "session", c.id, "error", err)
	}
}

func (c *Controller) release() {
	c.update(func(s *domain.SessionState) {
		s.Busy = false
		s.Phase = domain.PhaseIdle
		s.PendingGuess = nil
	})
	c.busy.Store(false)
}

func (c *Controller) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.readTimeout > 0 {
		return context.WithTimeout(ctx, c.readTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) setStatus(key domain.MessageKey, params map[string]string) {
	c.update(func(s *domain.SessionState) {
		s.Status = &domain.Status{Key: key, Params: params}
	})
}

func (c *Controller) update(fn func(s *domain.SessionState)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.UpdatedAt = time.Now()
	snap := c.state.Clone()
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.SessionChanged(c.id, snap)
	}
}
