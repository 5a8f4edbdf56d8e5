// Package bridge deploys and locates the Dai bridge contracts across an L1 chain and
// its Arbitrum-style L2.
package bridge

import (
	"fmt"

	"github.com/Bidon15/daibridge/internal/chain"
)

// Role is the logical name of a contract in a bridge deployment.
type Role string

// Deployment roles
const (
	RoleL1DaiGateway   Role = "l1DaiGateway"
	RoleL1Escrow       Role = "l1Escrow"
	RoleL2Dai          Role = "l2Dai"
	RoleL2DaiGateway   Role = "l2DaiGateway"
	RoleL1Dai          Role = "l1Dai"
	RoleArbRetryableTx Role = "arbRetryableTx"
)

// Contract names as they appear in compiler output.
const (
	ContractL1Escrow       = "L1Escrow"
	ContractArbDai         = "ArbDai"
	ContractL2DaiGateway   = "L2DaiGateway"
	ContractL1DaiGateway   = "L1DaiGateway"
	ContractDai            = "Dai"
	ContractArbRetryableTx = "ArbRetryableTx"
)

// Roles lists every role in display order.
var Roles = []Role{
	RoleL1DaiGateway,
	RoleL1Escrow,
	RoleL2Dai,
	RoleL2DaiGateway,
	RoleL1Dai,
	RoleArbRetryableTx,
}

type roleInfo struct {
	contract string
	layer    chain.Layer
}

var roles = map[Role]roleInfo{
	RoleL1DaiGateway:   {ContractL1DaiGateway, chain.L1},
	RoleL1Escrow:       {ContractL1Escrow, chain.L1},
	RoleL2Dai:          {ContractArbDai, chain.L2},
	RoleL2DaiGateway:   {ContractL2DaiGateway, chain.L2},
	RoleL1Dai:          {ContractDai, chain.L1},
	RoleArbRetryableTx: {ContractArbRetryableTx, chain.L2},
}

// ParseRole validates s as a role name.
func ParseRole(s string) (Role, error) {
	if _, ok := roles[Role(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return Role(s), nil
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// Contract returns the contract name behind the role.
func (r Role) Contract() string {
	return roles[r].contract
}

// Layer returns the layer the role's contract lives on.
func (r Role) Layer() chain.Layer {
	return roles[r].layer
}
