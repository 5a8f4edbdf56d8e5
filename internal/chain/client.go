package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Layer identifies which side of the bridge a chain sits on.
type Layer string

const (
	L1 Layer = "l1"
	L2 Layer = "l2"
)

// String returns the layer name.
func (l Layer) String() string {
	return string(l)
}

// ParseLayer parses "l1" or "l2" (case-sensitive).
func ParseLayer(s string) (Layer, error) {
	switch Layer(s) {
	case L1, L2:
		return Layer(s), nil
	default:
		return "", fmt.Errorf("unknown layer %q (expected l1 or l2)", s)
	}
}

// Client is the subset of the Ethereum JSON-RPC API the deployer relies on.
// *ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to rpcURL and verifies that it serves expectedChainID.
func Dial(ctx context.Context, rpcURL string, expectedChainID int64) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	if chainID.Int64() != expectedChainID {
		client.Close()
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrChainIDMismatch, expectedChainID, chainID.Int64())
	}

	return client, nil
}
