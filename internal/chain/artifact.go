package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrEmptyBytecode = errors.New("artifact has no bytecode")

// Artifact is a compiled contract in hardhat's artifact layout
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// LoadArtifact reads a hardhat artifact JSON file
func LoadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if strings.TrimPrefix(a.Bytecode, "0x") == "" {
		return nil, ErrEmptyBytecode
	}
	return &a, nil
}

// Code decodes the creation bytecode
func (a *Artifact) Code() ([]byte, error) {
	code := a.Bytecode
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	return hexutil.Decode(code)
}

// Interface parses the artifact ABI, falling back to the built-in game ABI.
func (a *Artifact) Interface() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return parsedGameABI, nil
	}
	return abi.JSON(strings.NewReader(string(a.ABI)))
}

// Deploy creates the contract and waits until its code is on chain.
func Deploy(ctx context.Context, backend Backend, signer *Signer, a *Artifact) (common.Address, error) {
	parsed, err := a.Interface()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse artifact abi: %w", err)
	}
	code, err := a.Code()
	if err != nil {
		return common.Address{}, fmt.Errorf("decode bytecode: %w", err)
	}

	opts := *signer.Opts
	opts.Context = ctx

	_, tx, _, err := bind.DeployContract(&opts, parsed, code, backend)
	if err != nil {
		return common.Address{}, err
	}

	addr, err := bind.WaitDeployed(ctx, backend, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("wait for deployment %s: %w", tx.Hash().Hex(), err)
	}
	return addr, nil
}
