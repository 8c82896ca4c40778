package main

import (
	"fmt"

	"guessing_game/internal/chain"
	"guessing_game/internal/domain"
	"guessing_game/internal/i18n"
	"guessing_game/internal/session"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	playGuess  int64
	playLocale string
)

// phasePrinter prints each new status line once
type phasePrinter struct {
	locale string
	last   string
}

func (p *phasePrinter) SessionChanged(id string, st domain.SessionState) {
	text := i18n.Text(p.locale, st.Status)
	if text == "" || text == p.last {
		return
	}
	p.last = text
	pterm.Info.Println(text)
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play one round with the configured stake",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireContract(); err != nil {
			return err
		}

		locale := playLocale
		if locale == "" {
			locale = cfg.DefaultLocale
		}

		ctx, stop := commandContext()
		defer stop()

		client, err := dial(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		w, err := wallet(client)
		if err != nil {
			return err
		}

		ctrl := session.NewController(w, chain.NewGameContract(cfg.Contract, client), session.Options{
			ID:          "guessctl",
			Stake:       cfg.Stake,
			Contract:    cfg.Contract,
			TxTimeout:   cfg.TxTimeout,
			ReadTimeout: cfg.ReadTimeout,
			Observer:    &phasePrinter{locale: locale},
		})

		if err := ctrl.Connect(ctx, handshakeRequest()); err != nil {
			return err
		}
		account, _ := ctrl.Account()
		pterm.Info.Println(fmt.Sprintf("%s, stake %s %s, prize pool %s %s",
			chain.ShortAddress(account.Hex()),
			chain.FormatEther(cfg.Stake), cfg.Deployment.Symbol,
			ctrl.Snapshot().PrizePool, cfg.Deployment.Symbol))

		if err := ctrl.Play(ctx, playGuess); err != nil {
			return err
		}

		st := ctrl.Snapshot()
		if st.LastResult != nil && st.LastResult.Won {
			pterm.Success.Println(i18n.ResultText(locale, st.LastResult, cfg.Deployment.Symbol))
		} else {
			pterm.Warning.Println(i18n.ResultText(locale, st.LastResult, cfg.Deployment.Symbol))
		}
		pterm.Info.Println("Prize pool: " + st.PrizePool + " " + cfg.Deployment.Symbol)
		return nil
	},
}

func init() {
	playCmd.Flags().Int64VarP(&playGuess, "guess", "g", 0, "number between 1 and 10")
	playCmd.Flags().StringVar(&playLocale, "lang", "", "message language (en, id)")
	_ = playCmd.MarkFlagRequired("guess")
	rootCmd.AddCommand(playCmd)
}
