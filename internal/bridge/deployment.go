package bridge

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/daibridge/internal/chain"
)

// Deployment holds a handle for every role of a bridge deployment. L1 handles sign
// with the L1 deployer and L2 handles with the L2 deployer.
type Deployment struct {
	L1DaiGateway   *chain.Contract
	L1Escrow       *chain.Contract
	L2Dai          *chain.Contract
	L2DaiGateway   *chain.Contract
	L1Dai          *chain.Contract
	ArbRetryableTx *chain.Contract

	// Report is set when the deployment was created by Deployer.Deploy.
	Report *Report
}

// Contract returns the handle for role, or nil for an unknown role.
func (d *Deployment) Contract(role Role) *chain.Contract {
	switch role {
	case RoleL1DaiGateway:
		return d.L1DaiGateway
	case RoleL1Escrow:
		return d.L1Escrow
	case RoleL2Dai:
		return d.L2Dai
	case RoleL2DaiGateway:
		return d.L2DaiGateway
	case RoleL1Dai:
		return d.L1Dai
	case RoleArbRetryableTx:
		return d.ArbRetryableTx
	default:
		return nil
	}
}

// Addresses returns the address of every role.
func (d *Deployment) Addresses() map[Role]common.Address {
	out := make(map[Role]common.Address, len(Roles))
	for _, role := range Roles {
		if c := d.Contract(role); c != nil {
			out[role] = c.Address()
		}
	}
	return out
}

// Step is one transaction issued during a deployment.
type Step struct {
	Name    string         `json:"name"`
	Layer   chain.Layer    `json:"layer"`
	TxHash  common.Hash    `json:"tx_hash"`
	Address common.Address `json:"address"`
}

// Report records what a deployment did on chain.
type Report struct {
	PredictedL1DaiGateway common.Address `json:"predicted_l1_dai_gateway"`
	Steps                 []Step         `json:"steps"`
}

func (r *Report) add(name string, layer chain.Layer, txHash common.Hash, addr common.Address) {
	r.Steps = append(r.Steps, Step{Name: name, Layer: layer, TxHash: txHash, Address: addr})
}
