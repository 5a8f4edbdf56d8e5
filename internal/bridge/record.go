package bridge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// RecordsVersion is the current records file format.
const RecordsVersion = 1

// DefaultNetwork names the built-in shared test deployment.
const DefaultNetwork = "default"

// AddressBook is the set of role addresses of one deployment.
type AddressBook struct {
	ID         string          `yaml:"id,omitempty" validate:"omitempty,uuid"`
	Network    string          `yaml:"network" validate:"required,max=64"`
	L1ChainID  int64           `yaml:"l1_chain_id,omitempty" validate:"gte=0"`
	L2ChainID  int64           `yaml:"l2_chain_id,omitempty" validate:"gte=0"`
	DeployedAt time.Time       `yaml:"deployed_at,omitempty"`
	Addresses  map[Role]string `yaml:"addresses" validate:"required"`
}

var validate = validator.New()

// NewAddressBook records the addresses of d under network.
func NewAddressBook(network string, d *Deployment) *AddressBook {
	book := &AddressBook{
		ID:         uuid.New().String(),
		Network:    network,
		DeployedAt: time.Now().UTC(),
		Addresses:  make(map[Role]string, len(Roles)),
	}
	for role, addr := range d.Addresses() {
		book.Addresses[role] = addr.Hex()
	}
	if d.L1DaiGateway != nil {
		book.L1ChainID = d.L1DaiGateway.Account().ChainID().Int64()
	}
	if d.L2DaiGateway != nil {
		book.L2ChainID = d.L2DaiGateway.Account().ChainID().Int64()
	}
	return book
}

// Address returns the parsed address of role.
func (b *AddressBook) Address(role Role) (common.Address, error) {
	raw, ok := b.Addresses[role]
	if !ok || raw == "" {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingAddress, role)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", ErrInvalidAddress, role, raw)
	}
	return common.HexToAddress(raw), nil
}

// Validate checks that every role has a well-formed address and no unknown role is present.
func (b *AddressBook) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	for role := range b.Addresses {
		if _, err := ParseRole(string(role)); err != nil {
			return err
		}
	}
	for _, role := range Roles {
		if _, err := b.Address(role); err != nil {
			return err
		}
	}
	return nil
}

// Records is the on-disk collection of address books keyed by network.
type Records struct {
	Version int                     `yaml:"version"`
	Records map[string]*AddressBook `yaml:"records"`
}

// NewRecords returns an empty collection.
func NewRecords() *Records {
	return &Records{
		Version: RecordsVersion,
		Records: make(map[string]*AddressBook),
	}
}

// LoadRecords reads a records file. A missing file yields an empty collection.
func LoadRecords(path string) (*Records, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRecords(), nil
		}
		return nil, fmt.Errorf("read records: %w", err)
	}

	r := NewRecords()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}
	if r.Version != RecordsVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRecordFile, r.Version)
	}
	if r.Records == nil {
		r.Records = make(map[string]*AddressBook)
	}
	for network, book := range r.Records {
		if book == nil {
			return nil, fmt.Errorf("parse records %s: empty record %q", path, network)
		}
		switch book.Network {
		case "":
			book.Network = network
		case network:
		default:
			return nil, fmt.Errorf("%w: record %q names network %q", ErrInvalidRecord, network, book.Network)
		}
	}
	return r, nil
}

// Save writes the collection to path atomically.
func (r *Records) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename records: %w", err)
	}
	return nil
}

// Get returns the address book of network. The default network falls back to
// DefaultAddressBook when the file has no entry for it.
func (r *Records) Get(network string) (*AddressBook, error) {
	if book, ok := r.Records[network]; ok {
		return book, nil
	}
	if network == DefaultNetwork {
		return DefaultAddressBook(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, network)
}

// Put stores book under its network, replacing any previous entry.
func (r *Records) Put(book *AddressBook) error {
	if err := book.Validate(); err != nil {
		return err
	}
	r.Records[book.Network] = book
	return nil
}

// Networks returns the recorded network names in sorted order.
func (r *Records) Networks() []string {
	names := make([]string, 0, len(r.Records))
	for name := range r.Records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
