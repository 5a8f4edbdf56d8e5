package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract is a handle to a contract instance: an address on a layer, the ABI it is
// expected to implement and the account that signs calls made through it.
//
// Attaching a handle performs no RPC. A wrong address or ABI surfaces on first use.
type Contract struct {
	name    string
	address common.Address
	abi     abi.ABI
	account *Account
}

// NewContract attaches a handle to the contract at address.
func NewContract(name string, address common.Address, contractABI abi.ABI, account *Account) *Contract {
	return &Contract{
		name:    name,
		address: address,
		abi:     contractABI,
		account: account,
	}
}

// Name returns the contract name the handle was attached with.
func (c *Contract) Name() string {
	return c.name
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// ABI returns the contract ABI.
func (c *Contract) ABI() abi.ABI {
	return c.abi
}

// Layer returns the layer the contract lives on.
func (c *Contract) Layer() Layer {
	return c.account.Layer()
}

// Account returns the account that signs transactions sent through the handle.
func (c *Contract) Account() *Account {
	return c.account
}

// From returns the address that signs transactions sent through the handle.
func (c *Contract) From() common.Address {
	return c.account.Address()
}

// Call executes a read-only method and returns its unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.name, method)
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", c.name, method, err)
	}

	from := c.account.Address()
	result, err := c.account.Client().CallContract(ctx, ethereum.CallMsg{
		From: from,
		To:   &c.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", c.name, method, err)
	}

	out, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s.%s: %w", c.name, method, err)
	}
	return out, nil
}

// Transact sends a state-changing method call and waits for it to be mined.
func (c *Contract) Transact(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.name, method)
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s.%s: %w", c.name, method, err)
	}

	receipt, err := c.account.Send(ctx, c.address, data)
	if err != nil {
		return receipt, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	return receipt, nil
}

// HasCode reports whether any code is deployed at the contract address.
func (c *Contract) HasCode(ctx context.Context) (bool, error) {
	code, err := c.account.Client().CodeAt(ctx, c.address, nil)
	if err != nil {
		return false, fmt.Errorf("get code of %s: %w", c.name, err)
	}
	return len(code) > 0, nil
}
