package main

import (
	"context"
	"fmt"

	"guessing_game/internal/chain"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var deployArtifact string

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the game contract from a compiled artifact",
	Long: `Deploy reads a compiled contract artifact (JSON with "abi" and "bytecode"),
sends the creation transaction and waits until the code is on chain.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		art, err := chain.LoadArtifact(deployArtifact)
		if err != nil {
			return err
		}

		name := art.ContractName
		if name == "" {
			name = "NumberGuessingGame"
		}

		ctx, stop := commandContext()
		defer stop()

		client, err := dial(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		s, err := signer(ctx, client)
		if err != nil {
			return fmt.Errorf("signer: %w", err)
		}

		spinner, _ := pterm.DefaultSpinner.WithText(fmt.Sprintf("Deploying %s from %s...", name, s.Account.Hex())).Start()
		txCtx, cancel := context.WithTimeout(ctx, cfg.TxTimeout)
		defer cancel()

		addr, err := chain.Deploy(txCtx, client, s, art)
		if err != nil {
			spinner.Fail("deployment failed")
			return err
		}
		spinner.Success(fmt.Sprintf("%s deployed to: %s", name, addr.Hex()))

		pterm.Info.Println("Set CONTRACT_ADDRESS=" + addr.Hex() + " to use it")
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployArtifact, "artifact", "artifacts/contracts/NumberGuessingGame.sol/NumberGuessingGame.json", "compiled contract artifact")
	rootCmd.AddCommand(deployCmd)
}
