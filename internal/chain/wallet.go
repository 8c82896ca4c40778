package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrWalletUnavailable  = errors.New("no compatible wallet available")
	ErrConnectionRejected = errors.New("wallet connection rejected")
)

// Signer is a connected account able to sign transactions
type Signer struct {
	Account common.Address
	Opts    *bind.TransactOpts
}

// HandshakeRequest selects and unlocks an account
type HandshakeRequest struct {
	Account    string `json:"account"`
	Passphrase string `json:"passphrase"`
}

// KeystoreWallet signs with accounts from a go-ethereum keystore directory
type KeystoreWallet struct {
	ks      *keystore.KeyStore
	chainID *big.Int
}

// NewKeystoreWallet opens dir. An empty or missing dir yields a wallet that
// reports ErrWalletUnavailable on every handshake.
func NewKeystoreWallet(dir string, chainID *big.Int) *KeystoreWallet {
	w := &KeystoreWallet{chainID: chainID}
	if dir == "" {
		return w
	}
	if _, err := os.Stat(dir); err != nil {
		return w
	}
	w.ks = keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	return w
}

// Accounts lists the addresses the keystore holds
func (w *KeystoreWallet) Accounts() []common.Address {
	if w == nil || w.ks == nil {
		return nil
	}
	var out []common.Address
	for _, a := range w.ks.Accounts() {
		out = append(out, a.Address)
	}
	return out
}

// Handshake unlocks the requested account, or the first one when none is requested.
func (w *KeystoreWallet) Handshake(ctx context.Context, req HandshakeRequest) (*Signer, error) {
	if w == nil || w.ks == nil {
		return nil, ErrWalletUnavailable
	}

	accs := w.ks.Accounts()
	if len(accs) == 0 {
		return nil, ErrWalletUnavailable
	}

	acc := accs[0]
	if req.Account != "" {
		if !common.IsHexAddress(req.Account) {
			return nil, fmt.Errorf("%w: invalid account %q", ErrConnectionRejected, req.Account)
		}
		found, err := w.ks.Find(accounts.Account{Address: common.HexToAddress(req.Account)})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionRejected, err)
		}
		acc = found
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := w.ks.Unlock(acc, req.Passphrase); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionRejected, err)
	}

	opts, err := bind.NewKeyStoreTransactorWithChainID(w.ks, acc, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionRejected, err)
	}

	return &Signer{Account: acc.Address, Opts: opts}, nil
}

// KeyWallet signs with a single raw private key (deployment scripts)
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

// NewKeyWallet parses a hex private key. An empty key yields an unavailable wallet.
func NewKeyWallet(hexKey string, chainID *big.Int) (*KeyWallet, error) {
	w := &KeyWallet{chainID: chainID}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return w, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	w.key = key
	return w, nil
}

// Handshake returns a signer for the key. Passphrase is ignored.
func (w *KeyWallet) Handshake(ctx context.Context, req HandshakeRequest) (*Signer, error) {
	if w == nil || w.key == nil {
		return nil, ErrWalletUnavailable
	}

	addr := crypto.PubkeyToAddress(w.key.PublicKey)
	if req.Account != "" && !strings.EqualFold(req.Account, addr.Hex()) {
		return nil, fmt.Errorf("%w: key does not control %s", ErrConnectionRejected, req.Account)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionRejected, err)
	}
	opts.Context = ctx

	return &Signer{Account: addr, Opts: opts}, nil
}
