package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"guessing_game/internal/chain"
	"guessing_game/internal/config"
	"guessing_game/internal/logger"
	"guessing_game/internal/session"

	"github.com/spf13/cobra"
)

// GlobalFlags are shared by every subcommand
type GlobalFlags struct {
	Deployment string
	Account    string
	Verbose    bool
}

var (
	globalFlags GlobalFlags
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "guessctl",
	Short: "Number guessing game operator tool",
	Long: `guessctl talks to a deployed NumberGuessingGame contract.

Configuration comes from the environment (or .env):
  RPC_URL           JSON-RPC endpoint (required)
  DEPLOYMENT        deployment variant from deployments.yaml
  CONTRACT_ADDRESS  overrides the variant's contract
  PRIVATE_KEY       signing key for deploy/deposit/play
  KEYSTORE_DIR      keystore used when PRIVATE_KEY is empty
  KEYSTORE_PASSPHRASE`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if globalFlags.Verbose {
			level = "debug"
		}
		logger.Init(logger.Options{Level: level})

		if globalFlags.Deployment != "" {
			os.Setenv("DEPLOYMENT", globalFlags.Deployment)
		}
		cfg = config.LoadChain()
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Deployment, "deployment", "d", "", "deployment variant (default from deployments.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Account, "account", "", "keystore account to sign with (default: first)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging")
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func dial(ctx context.Context) (*chain.Client, error) {
	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.RPCURL, err)
	}
	return client, nil
}

func requireContract() error {
	if !cfg.HasContract() {
		return fmt.Errorf("no contract address for deployment %q, set CONTRACT_ADDRESS", cfg.Deployment.Name)
	}
	return nil
}

// wallet picks the raw key when PRIVATE_KEY is set, otherwise the keystore
func wallet(client *chain.Client) (session.Wallet, error) {
	if cfg.PrivateKey != "" {
		w, err := chain.NewKeyWallet(cfg.PrivateKey, client.ChainIDValue())
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return chain.NewKeystoreWallet(cfg.KeystoreDir, client.ChainIDValue()), nil
}

func signer(ctx context.Context, client *chain.Client) (*chain.Signer, error) {
	w, err := wallet(client)
	if err != nil {
		return nil, err
	}
	return w.Handshake(ctx, handshakeRequest())
}

func handshakeRequest() chain.HandshakeRequest {
	return chain.HandshakeRequest{
		Account:    globalFlags.Account,
		Passphrase: os.Getenv("KEYSTORE_PASSPHRASE"),
	}
}
