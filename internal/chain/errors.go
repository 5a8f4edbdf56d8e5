package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors - Identity
var (
	ErrInvalidPrivateKey = errors.New("chain: invalid private key")
	ErrProductionChain   = errors.New("chain: development keys cannot be used on a production network")
	ErrChainIDMismatch   = errors.New("chain: chain ID mismatch")
	ErrRemoteSigner      = errors.New("chain: remote signer")
)

// Sentinel errors - Transactions
var (
	ErrTransactionReverted = errors.New("chain: transaction reverted")
	ErrEmptyBytecode       = errors.New("chain: empty bytecode")
	ErrUnknownMethod       = errors.New("chain: method not found in ABI")
)

// TxError wraps a submission failure with the transaction it belongs to.
type TxError struct {
	Op   string
	Hash common.Hash
	Err  error
}

// Error implements the error interface.
func (e *TxError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (tx %s): %v", e.Op, e.Hash.Hex(), e.Err)
}

// Unwrap returns the underlying error.
func (e *TxError) Unwrap() error {
	return e.Err
}
