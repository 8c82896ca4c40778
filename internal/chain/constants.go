package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// EtherDecimals is the number of decimals of the native token (1 TEA = 10^18 wei)
	EtherDecimals = 18

	// DefaultChainID is the Tea Sepolia testnet the game was first deployed to
	DefaultChainID = 10218

	// DefaultSymbol is the display symbol of the native token
	DefaultSymbol = "TEA"

	// ConfirmationBlocks is how many confirmations a play waits for
	ConfirmationBlocks = 1

	// DefaultTxTimeout bounds a submit + confirmation cycle
	DefaultTxTimeout = 3 * time.Minute

	// DefaultReadTimeout bounds a single view call
	DefaultReadTimeout = 15 * time.Second
)

var (
	// WeiPerEther is 10^18
	WeiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil)

	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseEther converts a decimal string like "0.001" into wei.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > EtherDecimals {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, EtherDecimals)
	}
	frac += strings.Repeat("0", EtherDecimals-len(frac))

	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return wei, nil
}

// MustParseEther is ParseEther for constants.
func MustParseEther(s string) *big.Int {
	wei, err := ParseEther(s)
	if err != nil {
		panic(err)
	}
	return wei
}

// FormatEther renders wei as a decimal string, keeping at least one fractional digit ("1.0", "0.002").
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0"
	}

	sign := ""
	v := new(big.Int).Set(wei)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}

	whole, rem := new(big.Int).QuoRem(v, WeiPerEther, new(big.Int))
	frac := rem.String()
	frac = strings.Repeat("0", EtherDecimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}
	return sign + whole.String() + "." + frac
}

// ShortAddress renders 0x1234...abcd the way the game front end showed the connected account.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
