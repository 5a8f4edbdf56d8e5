package bridge

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/daibridge/internal/chain"
)

// DefaultArbRetryableTx is the address of the ArbRetryableTx precompile on Arbitrum chains.
var DefaultArbRetryableTx = common.HexToAddress("0x000000000000000000000000000000000000006E")

// L1Dependencies are the pre-existing L1 contracts and the L1 signing identity.
type L1Dependencies struct {
	Deployer *chain.Account
	Dai      common.Address
	Router   common.Address
	Inbox    common.Address
}

// L2Dependencies are the pre-existing L2 contracts and the L2 signing identity.
type L2Dependencies struct {
	Deployer       *chain.Account
	Router         common.Address
	ArbRetryableTx common.Address
}

// Dependencies is everything a bridge deployment builds on.
type Dependencies struct {
	L1 L1Dependencies
	L2 L2Dependencies
}

// Validate checks that both deployers are bound to the right layer and that every
// dependency address is set.
func (d Dependencies) Validate() error {
	if err := d.validateDeployers(); err != nil {
		return err
	}

	for name, addr := range map[string]common.Address{
		"l1.dai":              d.L1.Dai,
		"l1.router":           d.L1.Router,
		"l1.inbox":            d.L1.Inbox,
		"l2.router":           d.L2.Router,
		"l2.arb_retryable_tx": d.L2.ArbRetryableTx,
	} {
		if addr == (common.Address{}) {
			return fmt.Errorf("%w: %s", ErrMissingDependency, name)
		}
	}
	return nil
}

func (d Dependencies) validateDeployers() error {
	if d.L1.Deployer == nil {
		return fmt.Errorf("%w: l1 deployer", ErrMissingDependency)
	}
	if d.L2.Deployer == nil {
		return fmt.Errorf("%w: l2 deployer", ErrMissingDependency)
	}
	if d.L1.Deployer.Layer() != chain.L1 {
		return fmt.Errorf("l1 deployer is bound to %s", d.L1.Deployer.Layer())
	}
	if d.L2.Deployer.Layer() != chain.L2 {
		return fmt.Errorf("l2 deployer is bound to %s", d.L2.Deployer.Layer())
	}
	return nil
}

func (d Dependencies) account(layer chain.Layer) *chain.Account {
	if layer == chain.L1 {
		return d.L1.Deployer
	}
	return d.L2.Deployer
}
