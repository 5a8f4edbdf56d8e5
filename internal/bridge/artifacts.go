package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DeployableContracts are the contracts the deployer creates, in deployment order.
var DeployableContracts = []string{
	ContractL1Escrow,
	ContractArbDai,
	ContractL2DaiGateway,
	ContractL1DaiGateway,
}

// Artifact is a compiled Solidity contract with ABI and creation bytecode.
type Artifact struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`
}

// Bytecode contains contract bytecode as hex.
// It handles both formats:
// - Hardhat: "0x608060..."
// - Foundry: {"object": "0x608060...", ...}
type Bytecode struct {
	hex string
}

// NewBytecode wraps a hex string, with or without the 0x prefix.
func NewBytecode(hex string) Bytecode {
	return Bytecode{hex: hex}
}

// UnmarshalJSON handles both string and object bytecode formats.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

// MarshalJSON marshals the bytecode as a string.
func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

// String returns the bytecode hex string.
func (b Bytecode) String() string {
	return b.hex
}

// Bytes decodes the bytecode. Unlinked library placeholders are rejected.
func (b Bytecode) Bytes() ([]byte, error) {
	h := b.hex
	if !strings.HasPrefix(h, "0x") && !strings.HasPrefix(h, "0X") {
		h = "0x" + h
	}
	if h == "0x" {
		return nil, nil
	}
	code, err := hexutil.Decode(h)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return code, nil
}

// ParsedABI parses the artifact ABI.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI of %s: %w", a.ContractName, err)
	}
	return parsed, nil
}

// Artifacts is a set of compiled contracts keyed by contract name.
type Artifacts struct {
	contracts map[string]*Artifact
	source    string
}

// NewArtifacts builds a set from already-loaded artifacts.
func NewArtifacts(source string, contracts map[string]*Artifact) *Artifacts {
	set := &Artifacts{contracts: make(map[string]*Artifact, len(contracts)), source: source}
	for name, a := range contracts {
		if a.ContractName == "" {
			a.ContractName = name
		}
		set.contracts[name] = a
	}
	return set
}

// Source describes where the artifacts were loaded from.
func (s *Artifacts) Source() string {
	return s.source
}

// Get returns the artifact for contract.
func (s *Artifacts) Get(contract string) (*Artifact, error) {
	a, ok := s.contracts[contract]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, contract)
	}
	return a, nil
}

// Names returns the loaded contract names in sorted order.
func (s *Artifacts) Names() []string {
	names := make([]string, 0, len(s.contracts))
	for name := range s.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadArtifacts walks a Hardhat artifacts/ or Foundry out/ tree and loads every
// contract in DeployableContracts. Files are matched by name (<Contract>.json)
// regardless of the source directory they were compiled from.
func LoadArtifacts(dir string) (*Artifacts, error) {
	wanted := make(map[string]bool, len(DeployableContracts))
	for _, name := range DeployableContracts {
		wanted[name] = true
	}

	found := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hardhat keeps solc inputs here; they are large and never artifacts.
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), ".json")
		if !wanted[name] {
			return nil
		}
		if prev, ok := found[name]; ok {
			return fmt.Errorf("%w: %s at %s and %s", ErrDuplicateArtifact, name, prev, path)
		}
		found[name] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan artifacts in %s: %w", dir, err)
	}

	var missing []string
	for _, name := range DeployableContracts {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w in %s: %v", ErrMissingArtifact, dir, missing)
	}

	contracts := make(map[string]*Artifact, len(found))
	for name, path := range found {
		a, err := loadArtifactFile(path)
		if err != nil {
			return nil, err
		}
		a.ContractName = name
		contracts[name] = a
	}

	return NewArtifacts("file://"+dir, contracts), nil
}

func loadArtifactFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(a.ABI) == 0 {
		return nil, fmt.Errorf("%w: %s has no abi", ErrInvalidArtifact, path)
	}
	return &a, nil
}
