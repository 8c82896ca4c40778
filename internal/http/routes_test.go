package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/config"
	"guessing_game/internal/domain"
	"guessing_game/internal/http/handlers"
	"guessing_game/internal/repository"
	"guessing_game/internal/service"
	"guessing_game/internal/session"
	"guessing_game/internal/ws"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var player = common.HexToAddress("0x00000000000000000000000000000000000000d4")

type fakeWallet struct{ err error }

func (w fakeWallet) Handshake(ctx context.Context, req chain.HandshakeRequest) (*chain.Signer, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &chain.Signer{Account: player, Opts: &bind.TransactOpts{From: player}}, nil
}

type fakeGame struct {
	mu         sync.Mutex
	plays      []int64
	values     []*big.Int
	playErr    error
	balance    *big.Int
	balanceErr error
	last       chain.GameResult

	// when set, Play blocks until it is closed
	gate chan struct{}
}

func (g *fakeGame) Play(ctx context.Context, signer *bind.TransactOpts, guess int64, stake *big.Int) (*types.Transaction, error) {
	g.mu.Lock()
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.plays = append(g.plays, guess)
	g.values = append(g.values, stake)
	if g.playErr != nil {
		return nil, g.playErr
	}
	g.last = chain.GameResult{Won: guess == 7, Guess: big.NewInt(guess), Prize: big.NewInt(0)}
	if guess == 7 {
		g.last.Prize = chain.MustParseEther("0.002")
	}
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(g.plays)), Value: stake, Gas: 21000, GasPrice: big.NewInt(1)}), nil
}

func (g *fakeGame) Confirm(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (g *fakeGame) ContractBalance(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balanceErr != nil {
		return nil, g.balanceErr
	}
	return g.balance, nil
}

func (g *fakeGame) LastResult(ctx context.Context, account common.Address) (chain.GameResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.last.Guess == nil {
		return chain.GameResult{Guess: big.NewInt(0), Prize: big.NewInt(0)}, nil
	}
	return g.last, nil
}

func (g *fakeGame) playCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.plays)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

type fakePlayStore struct {
	account string
}

func (s *fakePlayStore) GetByAccount(ctx context.Context, account string, limit int) ([]*domain.PlayRecord, error) {
	s.account = account
	hash := "0xabc"
	return []*domain.PlayRecord{{ID: 1, Account: account, Guess: 7, TxHash: &hash, Status: domain.PlayStatusConfirmed}}, nil
}

func (s *fakePlayStore) GetStats(ctx context.Context, account string) (*repository.PlayStats, error) {
	return &repository.PlayStats{Account: account, Total: 1, Confirmed: 1, StakedWei: "1000000000000000"}, nil
}

type env struct {
	router *gin.Engine
	game   *fakeGame
	h      *handlers.Handler
}

type envOpts struct {
	walletErr error
	rpcErr    error
	plays     handlers.PlayStore
}

func newEnv(t *testing.T, o envOpts) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("routes-test-secret", time.Hour)

	cfg, err := config.Parse(func(k string) string {
		return map[string]string{"RPC_URL": "http://127.0.0.1:8545", "JWT_SECRET": "routes-test-secret"}[k]
	})
	require.NoError(t, err)

	g := &fakeGame{balance: chain.MustParseEther("0.1")}
	hub := ws.NewHub(cfg.Deployment.Symbol)
	sessions := session.NewRegistry(time.Hour, func(id string) *session.Controller {
		return session.NewController(fakeWallet{err: o.walletErr}, g, session.Options{
			ID:       id,
			Stake:    cfg.Stake,
			Contract: cfg.Contract,
			Observer: hub,
		})
	})

	h := handlers.NewHandler(sessions, o.plays, handlers.DeploymentInfo{
		Name:          cfg.Deployment.Name,
		ChainID:       cfg.ChainID,
		Contract:      cfg.Contract.Hex(),
		Stake:         chain.FormatEther(cfg.Stake),
		StakeWei:      cfg.Stake.String(),
		Symbol:        cfg.Deployment.Symbol,
		GuessMin:      1,
		GuessMax:      10,
		DefaultLocale: cfg.DefaultLocale,
	})
	health := handlers.NewHealthHandler(fakePinger{err: o.rpcErr}, nil, "test")

	r := gin.New()
	RegisterRoutes(r, h, health, hub, cfg)
	return &env{router: r, game: g, h: h}
}

func (e *env) do(method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func (e *env) connect(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/session/connect", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := decode(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestGetConfig(t *testing.T) {
	e := newEnv(t, envOpts{})
	w := e.do(http.MethodGet, "/api/v1/config", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	m := decode(t, w)
	assert.Equal(t, "tea-sepolia", m["name"])
	assert.Equal(t, float64(10218), m["chain_id"])
	assert.Equal(t, "0.001", m["stake"])
	assert.Equal(t, "1000000000000000", m["stake_wei"])
	assert.Equal(t, "TEA", m["symbol"])
	assert.Equal(t, float64(1), m["guess_min"])
	assert.Equal(t, float64(10), m["guess_max"])
}

func TestConnectLoadsState(t *testing.T) {
	e := newEnv(t, envOpts{})
	w := e.do(http.MethodPost, "/api/v1/session/connect", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sess := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, true, sess["connected"])
	assert.Equal(t, player.Hex(), sess["account"])
	assert.Equal(t, "0.1", sess["prize_pool"])
	assert.Equal(t, 1, e.h.Sessions.Len())
}

func TestConnectReusesSession(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	w := e.do(http.MethodPost, "/api/v1/session/connect", token, ConnectBody{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.h.Sessions.Len())
}

type ConnectBody struct {
	Account string `json:"account,omitempty"`
}

func TestConnectWalletUnavailable(t *testing.T) {
	e := newEnv(t, envOpts{walletErr: chain.ErrWalletUnavailable})

	w := e.do(http.MethodPost, "/api/v1/session/connect", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "No compatible wallet is available", decode(t, w)["message"])
	assert.Equal(t, 0, e.h.Sessions.Len())
}

func TestConnectRejectedLocalized(t *testing.T) {
	e := newEnv(t, envOpts{walletErr: errors.New("could not decrypt key with given password")})

	w := e.do(http.MethodPost, "/api/v1/session/connect", "", nil, "Accept-Language", "id-ID,id;q=0.9")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Gagal menghubungkan dompet", decode(t, w)["message"])
}

func TestPlayWinningGuess(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	w := e.do(http.MethodPost, "/api/v1/session/play", token, map[string]any{"guess": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	m := decode(t, w)
	lr := m["last_result"].(map[string]any)
	assert.Equal(t, true, lr["won"])
	assert.Equal(t, float64(7), lr["guess"])
	assert.Equal(t, "0.002", lr["prize"])
	assert.Equal(t, "You Won! +0.002 TEA", m["result_text"])
	assert.Equal(t, false, m["busy"])
	assert.Equal(t, "Transaction completed! Refreshing result...", m["message"])

	require.Equal(t, 1, e.game.playCount())
	assert.Equal(t, "1000000000000000", e.game.values[0].String())
}

func TestPlayOutOfRange(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	w := e.do(http.MethodPost, "/api/v1/session/play", token, map[string]any{"guess": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Enter a number between 1 and 10", decode(t, w)["message"])
	assert.Zero(t, e.game.playCount())
}

func TestPlayMissingGuess(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	w := e.do(http.MethodPost, "/api/v1/session/play", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, e.game.playCount())
}

func TestPlayRevertSurfacesReason(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)
	e.game.playErr = errors.New("execution reverted: Insufficient prize pool")

	w := e.do(http.MethodPost, "/api/v1/session/play", token, map[string]any{"guess": 3})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	m := decode(t, w)
	assert.Equal(t, "Insufficient prize pool", m["reason"])
	assert.Equal(t, "Error: Insufficient prize pool", m["message"])
	sess := m["session"].(map[string]any)
	assert.Equal(t, false, sess["busy"])
}

func TestPlayAsync(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	gate := make(chan struct{})
	e.game.mu.Lock()
	e.game.gate = gate
	e.game.mu.Unlock()

	w := e.do(http.MethodPost, "/api/v1/session/play?async=true", token, map[string]any{"guess": 2})
	require.Equal(t, http.StatusAccepted, w.Code)
	m := decode(t, w)
	assert.Equal(t, true, m["busy"])
	assert.Equal(t, float64(2), m["pending_guess"])

	// the busy token is already held when the first request returns
	w = e.do(http.MethodPost, "/api/v1/session/play?async=true", token, map[string]any{"guess": 3})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(gate)

	assert.Eventually(t, func() bool {
		w := e.do(http.MethodGet, "/api/v1/session", token, nil)
		m := decode(t, w)
		lr, ok := m["last_result"].(map[string]any)
		return ok && lr["guess"] == float64(2) && m["busy"] == false
	}, 5*time.Second, 20*time.Millisecond)

	w = e.do(http.MethodPost, "/api/v1/session/play?async=true", token, map[string]any{"guess": 11})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, e.game.playCount())
}

func TestSessionEndpointsRequireToken(t *testing.T) {
	e := newEnv(t, envOpts{})
	for _, path := range []string{"/api/v1/session/play", "/api/v1/session/prize-pool", "/api/v1/session/last-result"} {
		w := e.do(http.MethodPost, path, "", map[string]any{"guess": 1})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/v1/session", "bogus", nil).Code)
	assert.Zero(t, e.game.playCount())
}

func TestRefreshPrizePoolFailureKeepsValue(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	e.game.mu.Lock()
	e.game.balanceErr = errors.New("connection refused")
	e.game.mu.Unlock()

	w := e.do(http.MethodPost, "/api/v1/session/prize-pool", token, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	sess := decode(t, w)["session"].(map[string]any)
	assert.Equal(t, "0.1", sess["prize_pool"])

	e.game.mu.Lock()
	e.game.balanceErr = nil
	e.game.balance = chain.MustParseEther("0.25")
	e.game.mu.Unlock()

	w = e.do(http.MethodPost, "/api/v1/session/prize-pool", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.25", decode(t, w)["prize_pool"])
}

func TestFetchLastResult(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)

	w := e.do(http.MethodPost, "/api/v1/session/last-result", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)
	assert.Equal(t, "You Lost", m["result_text"])
}

func TestListPlays(t *testing.T) {
	e := newEnv(t, envOpts{})
	token := e.connect(t)
	w := e.do(http.MethodGet, "/api/v1/plays", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	store := &fakePlayStore{}
	e = newEnv(t, envOpts{plays: store})
	token = e.connect(t)
	w = e.do(http.MethodGet, "/api/v1/plays?limit=5", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	m := decode(t, w)
	assert.Len(t, m["plays"], 1)
	assert.Equal(t, player.Hex(), store.account)
	assert.Equal(t, float64(1), m["stats"].(map[string]any)["confirmed"])
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t, envOpts{})
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)

	w := e.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	checks := decode(t, w)["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["rpc"])
	assert.Equal(t, "disabled", checks["database"])

	down := newEnv(t, envOpts{rpcErr: errors.New("dial tcp: refused")})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusOK, down.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, envOpts{})
	w := e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guess_active_sessions")
}
