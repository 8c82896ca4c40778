// Package i18n holds the user-facing copy of the game, keyed by message kind.
package i18n

import (
	"strings"

	"guessing_game/internal/domain"

	"golang.org/x/text/language"
)

const (
	LocaleEN = "en"
	LocaleID = "id"

	DefaultLocale = LocaleEN
)

const (
	keyResultWon  domain.MessageKey = "result_won"
	keyResultLost domain.MessageKey = "result_lost"
)

var (
	supported = []language.Tag{language.English, language.Indonesian}
	matcher   = language.NewMatcher(supported)
)

var tables = map[string]map[domain.MessageKey]string{
	LocaleEN: {
		domain.MsgWalletUnavailable:   "No compatible wallet is available",
		domain.MsgConnectionRejected:  "Failed to connect wallet",
		domain.MsgGuessOutOfRange:     "Enter a number between 1 and 10",
		domain.MsgContractNotReady:    "Contract is not ready",
		domain.MsgSendingTransaction:  "Sending transaction...",
		domain.MsgConfirming:          "Waiting for confirmation...",
		domain.MsgTransactionComplete: "Transaction completed! Refreshing result...",
		domain.MsgPlayFailed:          "Error: {reason}",
		domain.MsgBusy:                "A transaction is already in progress",
		domain.MsgRateLimited:         "Too many plays, try again later",
		keyResultWon:                  "You Won! +{prize} {symbol}",
		keyResultLost:                 "You Lost",
	},
	LocaleID: {
		domain.MsgWalletUnavailable:   "Dompet yang kompatibel tidak tersedia",
		domain.MsgConnectionRejected:  "Gagal menghubungkan dompet",
		domain.MsgGuessOutOfRange:     "Masukkan angka antara 1 dan 10",
		domain.MsgContractNotReady:    "Kontrak belum siap",
		domain.MsgSendingTransaction:  "Mengirim transaksi...",
		domain.MsgConfirming:          "Menunggu konfirmasi...",
		domain.MsgTransactionComplete: "Transaksi selesai! Memperbarui hasil...",
		domain.MsgPlayFailed:          "Kesalahan: {reason}",
		domain.MsgBusy:                "Transaksi sedang diproses",
		domain.MsgRateLimited:         "Terlalu banyak permainan, coba lagi nanti",
		keyResultWon:                  "Anda Menang! +{prize} {symbol}",
		keyResultLost:                 "Anda Kalah",
	},
}

// Supported reports whether locale has a message table
func Supported(locale string) bool {
	_, ok := tables[locale]
	return ok
}

// Match picks the best supported locale for an Accept-Language header value.
func Match(acceptLanguage, fallback string) string {
	if !Supported(fallback) {
		fallback = DefaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// Text resolves a status to display text
func Text(locale string, st *domain.Status) string {
	if st == nil {
		return ""
	}
	return render(lookup(locale, st.Key), st.Params)
}

// ResultText renders the last result line ("You Won! +0.002 TEA" / "You Lost").
func ResultText(locale string, lr *domain.LastResult, symbol string) string {
	if lr == nil {
		return ""
	}
	if !lr.Won {
		return lookup(locale, keyResultLost)
	}
	return render(lookup(locale, keyResultWon), map[string]string{"prize": lr.Prize, "symbol": symbol})
}

func lookup(locale string, key domain.MessageKey) string {
	if t, ok := tables[locale]; ok {
		if s, ok := t[key]; ok {
			return s
		}
	}
	if s, ok := tables[DefaultLocale][key]; ok {
		return s
	}
	return string(key)
}

func render(tmpl string, params map[string]string) string {
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
