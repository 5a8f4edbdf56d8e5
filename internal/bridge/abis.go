package bridge

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

//go:embed abi/*.json
var embeddedABIs embed.FS

// EmbeddedABI returns the raw ABI JSON shipped with the binary for contract.
func EmbeddedABI(contract string) (json.RawMessage, error) {
	data, err := embeddedABIs.ReadFile("abi/" + contract + ".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownContractABI, contract)
		}
		return nil, fmt.Errorf("read embedded ABI %s: %w", contract, err)
	}
	return data, nil
}

// ContractABI parses the embedded ABI for contract.
func ContractABI(contract string) (abi.ABI, error) {
	raw, err := EmbeddedABI(contract)
	if err != nil {
		return abi.ABI{}, err
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse embedded ABI %s: %w", contract, err)
	}
	return parsed, nil
}
