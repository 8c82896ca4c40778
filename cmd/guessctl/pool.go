package main

import (
	"context"
	"fmt"

	"guessing_game/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the contract balance and the prize pool",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContract(); err != nil {
			return err
		}

		ctx, stop := commandContext()
		defer stop()

		client, err := dial(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		readCtx, cancel := context.WithTimeout(ctx, cfg.ReadTimeout)
		defer cancel()

		contract := chain.NewGameContract(cfg.Contract, client)
		balance, err := contract.ContractBalance(readCtx)
		if err != nil {
			return fmt.Errorf("getContractBalance: %w", err)
		}
		pool, err := contract.PrizePool(readCtx)
		if err != nil {
			return fmt.Errorf("prizePool: %w", err)
		}

		sym := cfg.Deployment.Symbol
		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Deployment", "Contract", "Balance", "Prize pool", "Stake"},
			{cfg.Deployment.Name, cfg.Contract.Hex(), chain.FormatEther(balance) + " " + sym, chain.FormatEther(pool) + " " + sym, chain.FormatEther(cfg.Stake) + " " + sym},
		}).Render()
	},
}

var resultCmd = &cobra.Command{
	Use:   "result [account]",
	Short: "Show the last game of an account",
	Long:  "Result reads getLastResult for the given account, or for the signing account when omitted.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContract(); err != nil {
			return err
		}

		ctx, stop := commandContext()
		defer stop()

		client, err := dial(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		var account common.Address
		if len(args) == 1 {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid account %q", args[0])
			}
			account = common.HexToAddress(args[0])
		} else {
			s, err := signer(ctx, client)
			if err != nil {
				return fmt.Errorf("signer: %w", err)
			}
			account = s.Account
		}

		readCtx, cancel := context.WithTimeout(ctx, cfg.ReadTimeout)
		defer cancel()

		res, err := chain.NewGameContract(cfg.Contract, client).LastResult(readCtx, account)
		if err != nil {
			return fmt.Errorf("getLastResult: %w", err)
		}

		outcome := "lost"
		if res.Won {
			outcome = "won"
		}
		return pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Account", "Guess", "Outcome", "Prize"},
			{account.Hex(), res.Guess.String(), outcome, chain.FormatEther(res.Prize) + " " + cfg.Deployment.Symbol},
		}).Render()
	},
}

func init() {
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(resultCmd)
}
