package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"guessing_game/internal/chain"
	"guessing_game/internal/config"
	"guessing_game/internal/db"
	"guessing_game/internal/game"
	httpServer "guessing_game/internal/http"
	"guessing_game/internal/http/handlers"
	"guessing_game/internal/http/middleware"
	"guessing_game/internal/logger"
	"guessing_game/internal/repository"
	"guessing_game/internal/service"
	"guessing_game/internal/session"
	"guessing_game/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log)
	defer logger.Sync()

	service.InitJWT(cfg.JWTSecret, cfg.SessionTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID)
	if err != nil {
		logger.Fatal("failed to connect to rpc", "url", cfg.RPCURL, "error", err)
	}
	defer client.Close()

	wallet := newWallet(cfg, client)
	contract := chain.NewGameContract(cfg.Contract, client)

	// play log is optional
	var (
		dbPool   *pgxpool.Pool
		recorder session.Recorder
		plays    handlers.PlayStore
	)
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(ctx, cfg.DatabaseURL)
		defer dbPool.Close()
		repo := repository.NewPlayRepository(dbPool)
		recorder = repo
		plays = repo
	}

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer middleware.CloseRedis()

	hub := ws.NewHub(cfg.Deployment.Symbol)
	sessions := session.NewRegistry(cfg.SessionTTL, func(id string) *session.Controller {
		return session.NewController(wallet, contract, session.Options{
			ID:          id,
			Stake:       cfg.Stake,
			Contract:    cfg.Contract,
			TxTimeout:   cfg.TxTimeout,
			ReadTimeout: cfg.ReadTimeout,
			Observer:    hub,
			Recorder:    recorder,
		})
	})
	sessions.StartCleanup(ctx, time.Minute)

	h := handlers.NewHandler(sessions, plays, handlers.DeploymentInfo{
		Name:          cfg.Deployment.Name,
		ChainID:       cfg.ChainID,
		Contract:      cfg.Contract.Hex(),
		Stake:         chain.FormatEther(cfg.Stake),
		StakeWei:      cfg.Stake.String(),
		Symbol:        cfg.Deployment.Symbol,
		GuessMin:      game.GuessMin,
		GuessMax:      game.GuessMax,
		DefaultLocale: cfg.DefaultLocale,
	})
	health := handlers.NewHealthHandler(client, dbPool, version)

	r := gin.Default()

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "*" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, h, health, hub, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started",
			"port", cfg.AppPort,
			"deployment", cfg.Deployment.Name,
			"chain_id", cfg.ChainID,
			"contract", cfg.Contract.Hex(),
			"stake", chain.FormatEther(cfg.Stake),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

// newWallet prefers the keystore; a raw key is accepted for single-account deployments.
func newWallet(cfg *config.Config, client *chain.Client) session.Wallet {
	if cfg.KeystoreDir != "" {
		w := chain.NewKeystoreWallet(cfg.KeystoreDir, client.ChainIDValue())
		logger.Info("keystore wallet", "dir", cfg.KeystoreDir, "accounts", len(w.Accounts()))
		return w
	}
	if cfg.PrivateKey != "" {
		w, err := chain.NewKeyWallet(cfg.PrivateKey, client.ChainIDValue())
		if err != nil {
			logger.Fatal("invalid PRIVATE_KEY", "error", err)
		}
		return w
	}
	logger.Warn("no KEYSTORE_DIR or PRIVATE_KEY configured, wallet connections will be refused")
	return chain.NewKeystoreWallet("", client.ChainIDValue())
}
