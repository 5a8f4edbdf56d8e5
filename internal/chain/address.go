package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceReader reads the next nonce of an account.
type NonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// PredictNextContractAddress returns the address the next CREATE from deployer will land on,
// together with the nonce it was derived from.
//
// Precondition: no other transaction from deployer may be sent between this call and the
// dependent deployment. Any interleaved transaction consumes the nonce and the prediction
// no longer holds; callers must compare the result against the deployed address.
func PredictNextContractAddress(ctx context.Context, r NonceReader, deployer common.Address) (common.Address, uint64, error) {
	nonce, err := r.PendingNonceAt(ctx, deployer)
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("get nonce: %w", err)
	}
	return crypto.CreateAddress(deployer, nonce), nonce, nil
}
