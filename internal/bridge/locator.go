package bridge

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/daibridge/internal/chain"
)

// Locate attaches handles to an existing deployment using the addresses in book.
// It sends no transactions and performs no RPC: a wrong address or a contract of
// the wrong kind only surfaces on first interaction with the handle.
func Locate(deps Dependencies, book *AddressBook) (*Deployment, error) {
	if err := deps.validateDeployers(); err != nil {
		return nil, err
	}
	if book == nil {
		return nil, fmt.Errorf("%w: no address book", ErrMissingAddress)
	}

	handles := make(map[Role]*chain.Contract, len(Roles))
	for _, role := range Roles {
		addr, err := book.Address(role)
		if err != nil {
			return nil, err
		}
		c, err := attach(role, addr, deps.account(role.Layer()))
		if err != nil {
			return nil, err
		}
		handles[role] = c
	}

	return &Deployment{
		L1DaiGateway:   handles[RoleL1DaiGateway],
		L1Escrow:       handles[RoleL1Escrow],
		L2Dai:          handles[RoleL2Dai],
		L2DaiGateway:   handles[RoleL2DaiGateway],
		L1Dai:          handles[RoleL1Dai],
		ArbRetryableTx: handles[RoleArbRetryableTx],
	}, nil
}

// attach binds the embedded ABI of role's contract to addr.
func attach(role Role, addr common.Address, account *chain.Account) (*chain.Contract, error) {
	contractABI, err := ContractABI(role.Contract())
	if err != nil {
		return nil, err
	}
	return chain.NewContract(role.Contract(), addr, contractABI, account), nil
}

// DefaultAddressBook returns the addresses of the long-lived shared test deployment.
func DefaultAddressBook() *AddressBook {
	return &AddressBook{
		Network: DefaultNetwork,
		Addresses: map[Role]string{
			RoleL1DaiGateway:   "0xFDc297d3827b329dc2eCdF9cB918644A56719Cd2",
			RoleL1Escrow:       "0x371015546206585D438D0cd655DBee7D86c7d4f2",
			RoleL2Dai:          "0xb6Bc3Adc7d46c0DC91bAf019EB864593baD84911",
			RoleL2DaiGateway:   "0x1320bF8f23b28b7b4160Bd08BA01AD70773957Ca",
			RoleL1Dai:          "0xd9e66A2f546880EA4d800F189d6F12Cc15Bff281",
			RoleArbRetryableTx: "0x000000000000000000000000000000000000006E",
		},
	}
}
