package main

import (
	"errors"
	"os"
	"strconv"

	"guessing_game/internal/chain"
	"guessing_game/internal/config"
	"guessing_game/internal/logger"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage keystore accounts used by the server wallet",
	// keystore commands work offline, RPC_URL is not required
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logger.Options{Level: "warn"})
		_ = godotenv.Load()
		if globalFlags.Deployment != "" {
			os.Setenv("DEPLOYMENT", globalFlags.Deployment)
		}

		c, err := config.Parse(os.Getenv)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

var accountNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an encrypted account in KEYSTORE_DIR",
	Long: `New creates a key encrypted with KEYSTORE_PASSPHRASE in KEYSTORE_DIR.
Fund it, then connect to the server with the printed address.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.KeystoreDir == "" {
			return errors.New("KEYSTORE_DIR is not set")
		}
		passphrase := os.Getenv("KEYSTORE_PASSPHRASE")
		if passphrase == "" {
			pterm.Warning.Println("KEYSTORE_PASSPHRASE is empty, the key is stored with an empty passphrase")
		}
		if err := os.MkdirAll(cfg.KeystoreDir, 0o700); err != nil {
			return err
		}

		ks := keystore.NewKeyStore(cfg.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
		acc, err := ks.NewAccount(passphrase)
		if err != nil {
			return err
		}

		pterm.Success.Println("Created " + acc.Address.Hex())
		pterm.Info.Println("Key file: " + acc.URL.Path)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystore accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		accs := chain.NewKeystoreWallet(cfg.KeystoreDir, nil).Accounts()
		if len(accs) == 0 {
			pterm.Warning.Println("no accounts in " + cfg.KeystoreDir)
			return nil
		}

		data := pterm.TableData{{"#", "Address", "Short"}}
		for i, a := range accs {
			data = append(data, []string{strconv.Itoa(i), a.Hex(), chain.ShortAddress(a.Hex())})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	accountCmd.AddCommand(accountNewCmd)
	accountCmd.AddCommand(accountListCmd)
	rootCmd.AddCommand(accountCmd)
}
