package main

import (
	"context"
	"fmt"

	"guessing_game/internal/chain"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var depositAmount string

var depositCmd = &cobra.Command{
	Use:   "deposit",
	Short: "Fund the prize pool",
	Long: `Deposit sends --amount of the native token to depositPrizePool(),
waits for confirmation and prints the resulting prize pool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContract(); err != nil {
			return err
		}
		amount, err := chain.ParseEther(depositAmount)
		if err != nil {
			return err
		}
		if amount.Sign() <= 0 {
			return fmt.Errorf("%w: amount must be positive", chain.ErrInvalidAmount)
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

		contract := chain.NewGameContract(cfg.Contract, client)

		txCtx, cancel := context.WithTimeout(ctx, cfg.TxTimeout)
		defer cancel()

		spinner, _ := pterm.DefaultSpinner.WithText("Funding the prize pool...").Start()
		tx, err := contract.DepositPrizePool(txCtx, s.Opts, amount)
		if err != nil {
			spinner.Fail("deposit failed")
			return err
		}
		if _, err := contract.Confirm(txCtx, s.Account, tx); err != nil {
			spinner.Fail("deposit failed")
			return err
		}
		spinner.Success("Deposited " + chain.FormatEther(amount) + " " + cfg.Deployment.Symbol + " (tx " + tx.Hash().Hex() + ")")

		readCtx, cancelRead := context.WithTimeout(ctx, cfg.ReadTimeout)
		defer cancelRead()

		pool, err := contract.PrizePool(readCtx)
		if err != nil {
			return fmt.Errorf("read prize pool: %w", err)
		}
		pterm.Info.Println("Prize pool now: " + chain.FormatEther(pool) + " " + cfg.Deployment.Symbol)
		return nil
	},
}

func init() {
	depositCmd.Flags().StringVar(&depositAmount, "amount", "0.1", "amount to deposit, in whole tokens")
	rootCmd.AddCommand(depositCmd)
}
