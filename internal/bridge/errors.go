package bridge

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AddressMismatchMessage is reported when the L1 gateway does not land at its predicted address.
const AddressMismatchMessage = "Expected future address of l1DaiGateway doesn't match actual address!"

// Sentinel errors - Deployment
var (
	ErrAddressMismatch    = errors.New("bridge: l1DaiGateway address mismatch")
	ErrMissingDependency  = errors.New("bridge: missing dependency")
	ErrMissingArtifact    = errors.New("bridge: missing contract artifact")
	ErrDuplicateArtifact  = errors.New("bridge: duplicate contract artifact")
	ErrInvalidArtifact    = errors.New("bridge: invalid contract artifact")
	ErrUnknownContractABI = errors.New("bridge: no embedded ABI for contract")
)

// Sentinel errors - Address book
var (
	ErrUnknownRole           = errors.New("bridge: unknown role")
	ErrMissingAddress        = errors.New("bridge: missing address")
	ErrInvalidAddress        = errors.New("bridge: invalid address")
	ErrRecordNotFound        = errors.New("bridge: deployment record not found")
	ErrInvalidRecord         = errors.New("bridge: invalid deployment record")
	ErrUnsupportedRecordFile = errors.New("bridge: unsupported records file version")
)

// AddressMismatchError is returned when the L1 gateway was created at a different
// address than the one baked into the L2 gateway. It usually means another
// transaction was sent from the L1 deployer while the deployment was running.
type AddressMismatchError struct {
	Predicted common.Address
	Actual    common.Address
}

// Error implements the error interface.
func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("%s (predicted %s, actual %s)", AddressMismatchMessage, e.Predicted.Hex(), e.Actual.Hex())
}

// Is reports whether target is ErrAddressMismatch.
func (e *AddressMismatchError) Is(target error) bool {
	return target == ErrAddressMismatch
}
