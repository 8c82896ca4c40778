package session

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var player = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type playCall struct {
	guess int64
	value *big.Int
	from  common.Address
}

type fakeGame struct {
	mu sync.Mutex

	plays      []playCall
	playErr    error
	confirmErr error

	balance      *big.Int
	balanceErr   error
	balanceCalls int

	result      chain.GameResult
	resultErr   error
	resultCalls int
	resultFor   []common.Address

	// when set, Play signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func (f *fakeGame) Play(ctx context.Context, signer *bind.TransactOpts, guess int64, stake *big.Int) (*types.Transaction, error) {
	f.mu.Lock()
	f.plays = append(f.plays, playCall{guess: guess, value: new(big.Int).Set(stake), from: signer.From})
	err := f.playErr
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(f.plays)), Value: stake, Gas: 100000, GasPrice: big.NewInt(1)}), nil
}

func (f *fakeGame) Confirm(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Receipt, error) {
	if f.confirmErr != nil {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, f.confirmErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeGame) ContractBalance(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeGame) LastResult(ctx context.Context, account common.Address) (chain.GameResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	f.resultFor = append(f.resultFor, account)
	if f.resultErr != nil {
		return chain.GameResult{}, f.resultErr
	}
	return f.result, nil
}

func (f *fakeGame) resetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls = 0
	f.resultCalls = 0
	f.resultFor = nil
}

type fakeWallet struct {
	err error
}

func (w fakeWallet) Handshake(ctx context.Context, req chain.HandshakeRequest) (*chain.Signer, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &chain.Signer{Account: player, Opts: &bind.TransactOpts{From: player}}, nil
}

type phaseRecorder struct {
	mu     sync.Mutex
	phases []domain.Phase
}

func (p *phaseRecorder) SessionChanged(id string, st domain.SessionState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.phases); n == 0 || p.phases[n-1] != st.Phase {
		p.phases = append(p.phases, st.Phase)
	}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []*domain.PlayRecord
}

func (m *memRecorder) Record(ctx context.Context, rec *domain.PlayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

var stake = chain.MustParseEther("0.001")

func newTestController(t *testing.T, g *fakeGame, opts Options) *Controller {
	t.Helper()
	if opts.Stake == nil {
		opts.Stake = stake
	}
	if opts.ID == "" {
		opts.ID = "test-session"
	}
	return NewController(fakeWallet{}, g, opts)
}

func connected(t *testing.T, g *fakeGame, opts Options) *Controller {
	t.Helper()
	c := newTestController(t, g, opts)
	require.NoError(t, c.Connect(context.Background(), chain.HandshakeRequest{}))
	g.resetCounters()
	return c
}

func TestPlayRejectsOutOfRangeGuess(t *testing.T) {
	for _, guess := range []int64{-1, 0, 11, 1000} {
		g := &fakeGame{balance: big.NewInt(0)}
		c := connected(t, g, Options{})

		err := c.Play(context.Background(), guess)
		require.ErrorIs(t, err, ErrInvalidInput, "guess %d", guess)

		assert.Empty(t, g.plays, "guess %d must not reach the contract", guess)
		st := c.Snapshot()
		require.NotNil(t, st.Status)
		assert.Equal(t, domain.MsgGuessOutOfRange, st.Status.Key)
		assert.False(t, st.Busy)
		assert.False(t, c.Busy())
		assert.Equal(t, domain.PhaseIdle, st.Phase)
		assert.Zero(t, g.balanceCalls)
	}
}

func TestPlaySubmitsExactlyOneCallWithStake(t *testing.T) {
	for guess := int64(1); guess <= 10; guess++ {
		g := &fakeGame{balance: big.NewInt(0), result: chain.GameResult{Guess: big.NewInt(guess), Prize: big.NewInt(0)}}
		c := connected(t, g, Options{})

		require.NoError(t, c.Play(context.Background(), guess))

		require.Len(t, g.plays, 1)
		assert.Equal(t, guess, g.plays[0].guess)
		assert.Equal(t, 0, stake.Cmp(g.plays[0].value))
		assert.Equal(t, player, g.plays[0].from)
	}
}

func TestPlayWhileBusyReturnsImmediately(t *testing.T) {
	g := &fakeGame{
		balance: big.NewInt(0),
		result:  chain.GameResult{Guess: big.NewInt(5), Prize: big.NewInt(0)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := connected(t, g, Options{})

	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), 5) }()
	<-g.started

	before := c.Snapshot()
	assert.True(t, before.Busy)
	assert.True(t, c.Busy())

	err := c.Play(context.Background(), 6)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.Connect(context.Background(), chain.HandshakeRequest{}), ErrBusy)

	after := c.Snapshot()
	assert.Equal(t, before.Status, after.Status)
	require.NotNil(t, after.PendingGuess)
	assert.Equal(t, int64(5), *after.PendingGuess)

	close(g.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("play did not finish")
	}

	assert.Len(t, g.plays, 1)
	assert.False(t, c.Busy())
	assert.False(t, c.Snapshot().Busy)
}

func TestPlaySuccessRefreshesOnce(t *testing.T) {
	g := &fakeGame{
		balance: chain.MustParseEther("1.5"),
		result:  chain.GameResult{Won: true, Guess: big.NewInt(7), Prize: chain.MustParseEther("0.002")},
	}
	phases := &phaseRecorder{}
	c := connected(t, g, Options{Observer: phases})
	phases.phases = nil

	require.NoError(t, c.Play(context.Background(), 7))

	assert.Equal(t, 1, g.balanceCalls)
	assert.Equal(t, 1, g.resultCalls)
	assert.Equal(t, []common.Address{player}, g.resultFor)

	st := c.Snapshot()
	assert.False(t, st.Busy)
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Nil(t, st.PendingGuess)
	assert.Equal(t, "1.5", st.PrizePool)
	require.NotNil(t, st.LastResult)
	assert.True(t, st.LastResult.Won)
	assert.Equal(t, int64(7), st.LastResult.Guess)
	assert.Equal(t, "0.002", st.LastResult.Prize)
	require.NotNil(t, st.Status)
	assert.Equal(t, domain.MsgTransactionComplete, st.Status.Key)

	assert.Equal(t, []domain.Phase{
		domain.PhaseValidating,
		domain.PhaseSubmitting,
		domain.PhaseConfirming,
		domain.PhaseRefreshing,
		domain.PhaseIdle,
	}, phases.phases)
}

func TestPlayFailureDoesNotRefresh(t *testing.T) {
	cases := []struct {
		name       string
		playErr    error
		confirmErr error
		reason     string
		status     domain.PlayStatus
	}{
		{
			name:    "revert on submit",
			playErr: errors.New("execution reverted: Insufficient prize pool"),
			reason:  "Insufficient prize pool",
			status:  domain.PlayStatusReverted,
		},
		{
			name:    "network error",
			playErr: errors.New("dial tcp 127.0.0.1:8545: connection refused"),
			reason:  "dial tcp 127.0.0.1:8545: connection refused",
			status:  domain.PlayStatusFailed,
		},
		{
			name:       "mined revert",
			confirmErr: &chain.RevertError{Reason: "Incorrect bet amount"},
			reason:     "Incorrect bet amount",
			status:     domain.PlayStatusReverted,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &fakeGame{balance: big.NewInt(1), playErr: tc.playErr, confirmErr: tc.confirmErr}
			rec := &memRecorder{}
			c := connected(t, g, Options{Recorder: rec})

			err := c.Play(context.Background(), 4)
			require.ErrorIs(t, err, ErrContractCallFailed)

			var callErr *CallError
			require.ErrorAs(t, err, &callErr)
			assert.Equal(t, tc.reason, callErr.Reason)

			assert.Zero(t, g.balanceCalls)
			assert.Zero(t, g.resultCalls)

			st := c.Snapshot()
			assert.False(t, st.Busy)
			assert.False(t, c.Busy())
			assert.Equal(t, domain.PhaseIdle, st.Phase)
			require.NotNil(t, st.Status)
			assert.Equal(t, domain.MsgPlayFailed, st.Status.Key)
			assert.Equal(t, tc.reason, st.Status.Params["reason"])

			require.Len(t, rec.recs, 1)
			assert.Equal(t, tc.status, rec.recs[0].Status)
			assert.Equal(t, tc.reason, rec.recs[0].Reason)
			assert.Equal(t, int64(4), rec.recs[0].Guess)
			if tc.playErr != nil {
				assert.Nil(t, rec.recs[0].TxHash)
			} else {
				assert.NotNil(t, rec.recs[0].TxHash)
			}
		})
	}
}

func TestPlayRecordsConfirmedPlay(t *testing.T) {
	g := &fakeGame{balance: big.NewInt(0), result: chain.GameResult{Guess: big.NewInt(2), Prize: big.NewInt(0)}}
	rec := &memRecorder{}
	contract := common.HexToAddress("0x1e4C71616D9d69538d325B2673d110940D1F359C")
	c := connected(t, g, Options{Recorder: rec, Contract: contract, ID: "sid-1"})

	require.NoError(t, c.Play(context.Background(), 2))

	require.Len(t, rec.recs, 1)
	r := rec.recs[0]
	assert.Equal(t, domain.PlayStatusConfirmed, r.Status)
	assert.Equal(t, "sid-1", r.SessionID)
	assert.Equal(t, player.Hex(), r.Account)
	assert.Equal(t, contract.Hex(), r.Contract)
	assert.Equal(t, stake.String(), r.StakeWei)
	require.NotNil(t, r.TxHash)
}

func TestPlayRequiresConnection(t *testing.T) {
	g := &fakeGame{}
	c := newTestController(t, g, Options{})

	err := c.Play(context.Background(), 5)
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, g.plays)

	st := c.Snapshot()
	require.NotNil(t, st.Status)
	assert.Equal(t, domain.MsgContractNotReady, st.Status.Key)
	assert.False(t, st.Busy)
}

func TestPlayOutOfRangeBeforeConnectionCheck(t *testing.T) {
	c := newTestController(t, &fakeGame{}, Options{})
	err := c.Play(context.Background(), 11)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, domain.MsgGuessOutOfRange, c.Snapshot().Status.Key)
}

func TestConnect(t *testing.T) {
	t.Run("success loads pool and result", func(t *testing.T) {
		g := &fakeGame{
			balance: chain.MustParseEther("0.1"),
			result:  chain.GameResult{Won: false, Guess: big.NewInt(3), Prize: big.NewInt(0)},
		}
		c := newTestController(t, g, Options{})
		require.NoError(t, c.Connect(context.Background(), chain.HandshakeRequest{}))

		st := c.Snapshot()
		assert.True(t, st.Connected)
		assert.Equal(t, player.Hex(), st.Account)
		assert.Equal(t, "0.1", st.PrizePool)
		require.NotNil(t, st.LastResult)
		assert.False(t, st.LastResult.Won)
		assert.Equal(t, int64(3), st.LastResult.Guess)
		assert.Nil(t, st.Status)

		acc, ok := c.Account()
		assert.True(t, ok)
		assert.Equal(t, player, acc)
	})

	t.Run("success despite read failures", func(t *testing.T) {
		g := &fakeGame{balanceErr: errors.New("rpc down"), resultErr: errors.New("rpc down")}
		c := newTestController(t, g, Options{})
		require.NoError(t, c.Connect(context.Background(), chain.HandshakeRequest{}))

		st := c.Snapshot()
		assert.True(t, st.Connected)
		assert.Equal(t, "0.0", st.PrizePool)
		assert.Nil(t, st.LastResult)
		assert.Nil(t, st.Status)
	})

	cases := []struct {
		name    string
		err     error
		wantErr error
		wantMsg domain.MessageKey
	}{
		{"no wallet", ErrWalletUnavailable, ErrWalletUnavailable, domain.MsgWalletUnavailable},
		{"rejected", ErrConnectionRejected, ErrConnectionRejected, domain.MsgConnectionRejected},
		{"other failure", errors.New("keystore locked by another process"), ErrConnectionRejected, domain.MsgConnectionRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &fakeGame{}
			c := NewController(fakeWallet{err: tc.err}, g, Options{Stake: stake})

			err := c.Connect(context.Background(), chain.HandshakeRequest{})
			require.ErrorIs(t, err, tc.wantErr)

			st := c.Snapshot()
			assert.False(t, st.Connected)
			require.NotNil(t, st.Status)
			assert.Equal(t, tc.wantMsg, st.Status.Key)
			assert.Zero(t, g.balanceCalls)
		})
	}
}

func TestRefreshPrizePoolKeepsLastValueOnFailure(t *testing.T) {
	g := &fakeGame{balance: chain.MustParseEther("2")}
	c := connected(t, g, Options{})
	assert.Equal(t, "2.0", c.Snapshot().PrizePool)

	g.balanceErr = errors.New("header not found")
	err := c.RefreshPrizePool(context.Background())
	require.ErrorIs(t, err, ErrReadFailed)

	st := c.Snapshot()
	assert.Equal(t, "2.0", st.PrizePool)
	assert.Nil(t, st.Status)
}

func TestFetchLastResultKeepsPriorOnFailure(t *testing.T) {
	g := &fakeGame{balance: big.NewInt(0), result: chain.GameResult{Won: true, Guess: big.NewInt(9), Prize: chain.MustParseEther("0.02")}}
	c := connected(t, g, Options{})

	g.resultErr = errors.New("timeout")
	require.ErrorIs(t, c.FetchLastResult(context.Background()), ErrReadFailed)

	st := c.Snapshot()
	require.NotNil(t, st.LastResult)
	assert.Equal(t, int64(9), st.LastResult.Guess)
	assert.Equal(t, "0.02", st.LastResult.Prize)
}

func TestReadsRequireConnection(t *testing.T) {
	g := &fakeGame{}
	c := newTestController(t, g, Options{})
	assert.ErrorIs(t, c.RefreshPrizePool(context.Background()), ErrNotConnected)
	assert.ErrorIs(t, c.FetchLastResult(context.Background()), ErrNotConnected)
	assert.Zero(t, g.balanceCalls)
	assert.Zero(t, g.resultCalls)
}

func TestNeverPlayedAccountResultPassesThrough(t *testing.T) {
	// the contract answers (false, 0, 0) for an account without games
	g := &fakeGame{balance: big.NewInt(0), result: chain.GameResult{Won: false, Guess: big.NewInt(0), Prize: big.NewInt(0)}}
	c := connected(t, g, Options{})
	require.NoError(t, c.FetchLastResult(context.Background()))

	lr := c.Snapshot().LastResult
	require.NotNil(t, lr)
	assert.False(t, lr.Won)
	assert.Equal(t, int64(0), lr.Guess)
	assert.Equal(t, "0.0", lr.Prize)
}

func TestPlayMetrics(t *testing.T) {
	before := testutil.ToFloat64(playsTotal.WithLabelValues("invalid_input"))
	c := newTestController(t, &fakeGame{}, Options{})
	_ = c.Play(context.Background(), 0)
	assert.Equal(t, before+1, testutil.ToFloat64(playsTotal.WithLabelValues("invalid_input")))
}

func TestFreshSessionPrizePoolMatchesEtherFormat(t *testing.T) {
	c := newTestController(t, &fakeGame{}, Options{})
	assert.Equal(t, chain.FormatEther(big.NewInt(0)), c.Snapshot().PrizePool)
	assert.Equal(t, "0.0", c.Snapshot().PrizePool)
}

func TestSnapshotIsACopy(t *testing.T) {
	g := &fakeGame{balance: big.NewInt(5), result: chain.GameResult{Guess: big.NewInt(1), Prize: big.NewInt(1)}}
	c := connected(t, g, Options{})
	require.NoError(t, c.FetchLastResult(context.Background()))

	snap := c.Snapshot()
	snap.LastResult.Guess = 99
	snap.PrizePoolWei.SetInt64(1000)

	fresh := c.Snapshot()
	assert.Equal(t, int64(1), fresh.LastResult.Guess)
	assert.Equal(t, int64(5), fresh.PrizePoolWei.Int64())
}

func TestPlayAsyncReturnsBusySnapshot(t *testing.T) {
	g := &fakeGame{
		balance: big.NewInt(0),
		result:  chain.GameResult{Guess: big.NewInt(4), Prize: big.NewInt(0)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := connected(t, g, Options{})

	done := make(chan error, 1)
	st, err := c.PlayAsync(context.Background(), 4, func(err error) { done <- err })
	require.NoError(t, err)
	assert.True(t, st.Busy)
	assert.Equal(t, domain.PhaseValidating, st.Phase)
	require.NotNil(t, st.PendingGuess)
	assert.Equal(t, int64(4), *st.PendingGuess)

	<-g.started
	_, err = c.PlayAsync(context.Background(), 5, nil)
	assert.ErrorIs(t, err, ErrBusy)

	close(g.release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("play did not finish")
	}
	assert.Len(t, g.plays, 1)
	assert.False(t, c.Busy())
}

func TestPlayAsyncRejectsSynchronously(t *testing.T) {
	g := &fakeGame{balance: big.NewInt(0)}
	c := connected(t, g, Options{})

	called := false
	st, err := c.PlayAsync(context.Background(), 11, func(error) { called = true })
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, st.Busy)
	assert.False(t, c.Busy())
	require.NotNil(t, st.Status)
	assert.Equal(t, domain.MsgGuessOutOfRange, st.Status.Key)

	_, err = newTestController(t, g, Options{}).PlayAsync(context.Background(), 3, nil)
	require.ErrorIs(t, err, ErrNotConnected)

	assert.Empty(t, g.plays)
	assert.False(t, called)
}
