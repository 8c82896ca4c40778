package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of an RPC client the game contract needs.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client is a JSON-RPC client for an EVM network
type Client struct {
	*ethclient.Client
	chainID *big.Int
	url     string
}

// Dial connects to rpcURL and checks the node serves expectedChainID (0 skips the check).
func Dial(ctx context.Context, rpcURL string, expectedChainID int64) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ec, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	chainID, err := ec.ChainID(dialCtx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}

	if expectedChainID != 0 && chainID.Int64() != expectedChainID {
		ec.Close()
		return nil, fmt.Errorf("chain id mismatch: expected %d, node reports %s", expectedChainID, chainID)
	}

	return &Client{Client: ec, chainID: chainID, url: rpcURL}, nil
}

// ChainIDValue returns the chain id reported at dial time
func (c *Client) ChainIDValue() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Ping checks the node is still answering (used by readiness probes)
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.BlockNumber(ctx)
	return err
}
