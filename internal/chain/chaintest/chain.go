// Package chaintest provides an in-memory chain that satisfies chain.Client for tests.
//
// The fake recovers the real sender of every signed transaction, enforces nonce
// ordering, assigns CREATE addresses from the sender nonce and emulates the few
// contract effects the bridge deployer relies on: ward-based rely/deny, the escrow's
// approve(token, spender, value) and ERC-20 approve/allowance.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Bidon15/daibridge/internal/chain"
)

// DefaultGasPrice is the price returned by SuggestGasPrice.
var DefaultGasPrice = big.NewInt(1_000_000_000)

// DefaultGasEstimate is the limit returned by EstimateGas.
const DefaultGasEstimate = 1_000_000

var (
	selRely          = selector("rely(address)")
	selDeny          = selector("deny(address)")
	selWards         = selector("wards(address)")
	selEscrowApprove = selector("approve(address,address,uint256)")
	selApprove       = selector("approve(address,uint256)")
	selAllowance     = selector("allowance(address,address)")
)

// Mined is a transaction the fake chain has included.
type Mined struct {
	From    common.Address
	Tx      *types.Transaction
	Receipt *types.Receipt
}

// Chain is an in-memory single-node chain. It is safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	chainID *big.Int
	block   uint64

	nonces     map[common.Address]uint64
	code       map[common.Address][]byte
	receipts   map[common.Hash]*types.Receipt
	wards      map[common.Address]map[common.Address]bool
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	mined      []Mined

	// OnMined runs after a transaction is included, outside the chain lock.
	OnMined func(m Mined)
	// RevertIf makes a transaction revert when it returns true.
	RevertIf func(from common.Address, tx *types.Transaction) bool
	// SendErr, if set, is returned by SendTransaction instead of including the tx.
	SendErr error
	// EstimateErr, if set, is returned by EstimateGas.
	EstimateErr error
}

// New creates an empty chain with the given chain ID.
func New(chainID int64) *Chain {
	return &Chain{
		chainID:    big.NewInt(chainID),
		nonces:     make(map[common.Address]uint64),
		code:       make(map[common.Address][]byte),
		receipts:   make(map[common.Hash]*types.Receipt),
		wards:      make(map[common.Address]map[common.Address]bool),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
	}
}

var _ chain.Client = (*Chain)(nil)

// SetCode places code at addr, e.g. for tokens or precompiles that exist before a test.
func (c *Chain) SetCode(addr common.Address, code []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code[addr] = code
}

// Mined returns all included transactions in order.
func (c *Chain) Mined() []Mined {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Mined, len(c.mined))
	copy(out, c.mined)
	return out
}

// Creations returns the addresses of contracts created so far, in order.
func (c *Chain) Creations() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []common.Address
	for _, m := range c.mined {
		if m.Tx.To() == nil && m.Receipt.Status == types.ReceiptStatusSuccessful {
			out = append(out, m.Receipt.ContractAddress)
		}
	}
	return out
}

// IsWard reports whether who is authorized on contract.
func (c *Chain) IsWard(contract, who common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wards[contract][who]
}

// Allowance returns token's allowance from owner to spender.
func (c *Chain) Allowance(token, owner, spender common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowance(token, owner, spender)
}

// ChainID implements chain.Client.
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

// PendingNonceAt implements chain.Client.
func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

// SuggestGasPrice implements chain.Client.
func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(DefaultGasPrice), nil
}

// EstimateGas implements chain.Client.
func (c *Chain) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return DefaultGasEstimate, nil
}

// CodeAt implements chain.Client.
func (c *Chain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code[account], nil
}

// TransactionReceipt implements chain.Client.
func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// SendTransaction implements chain.Client. The transaction is mined immediately.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.SendErr != nil {
		return c.SendErr
	}

	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	m, err := c.include(from, tx)
	if err != nil {
		return err
	}
	if c.OnMined != nil {
		c.OnMined(m)
	}
	return nil
}

func (c *Chain) include(from common.Address, tx *types.Transaction) (Mined, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if want := c.nonces[from]; tx.Nonce() != want {
		return Mined{}, fmt.Errorf("invalid nonce for %s: have %d, want %d", from.Hex(), tx.Nonce(), want)
	}
	c.nonces[from]++
	c.block++

	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(c.block),
		GasUsed:     DefaultGasEstimate / 2,
	}

	reverted := c.RevertIf != nil && c.RevertIf(from, tx)
	if !reverted {
		if tx.To() == nil {
			addr := crypto.CreateAddress(from, tx.Nonce())
			c.code[addr] = tx.Data()
			c.ward(addr)[from] = true
			receipt.ContractAddress = addr
		} else if err := c.execute(from, *tx.To(), tx.Data()); err != nil {
			reverted = true
		}
	}
	if reverted {
		receipt.Status = types.ReceiptStatusFailed
		receipt.ContractAddress = common.Address{}
	}

	c.receipts[tx.Hash()] = receipt
	m := Mined{From: from, Tx: tx, Receipt: receipt}
	c.mined = append(c.mined, m)
	return m, nil
}

var errRevert = errors.New("execution reverted")

// execute applies the emulated effect of a call. Calls to accounts without code succeed
// without effect.
func (c *Chain) execute(from, to common.Address, data []byte) error {
	if len(c.code[to]) == 0 || len(data) < 4 {
		return nil
	}

	sel, args := [4]byte(data[:4]), data[4:]
	switch sel {
	case selRely, selDeny:
		if !c.wards[to][from] {
			return errRevert
		}
		who, err := wordAddress(args, 0)
		if err != nil {
			return err
		}
		c.ward(to)[who] = sel == selRely
	case selEscrowApprove:
		if !c.wards[to][from] {
			return errRevert
		}
		token, err := wordAddress(args, 0)
		if err != nil {
			return err
		}
		spender, err := wordAddress(args, 1)
		if err != nil {
			return err
		}
		value, err := wordUint(args, 2)
		if err != nil {
			return err
		}
		c.setAllowance(token, to, spender, value)
	case selApprove:
		spender, err := wordAddress(args, 0)
		if err != nil {
			return err
		}
		value, err := wordUint(args, 1)
		if err != nil {
			return err
		}
		c.setAllowance(to, from, spender, value)
	}
	return nil
}

// CallContract implements chain.Client for the emulated view methods.
func (c *Chain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if call.To == nil || len(call.Data) < 4 {
		return nil, errRevert
	}
	to := *call.To
	if len(c.code[to]) == 0 {
		return nil, nil
	}

	sel, args := [4]byte(call.Data[:4]), call.Data[4:]
	switch sel {
	case selWards:
		who, err := wordAddress(args, 0)
		if err != nil {
			return nil, err
		}
		if c.wards[to][who] {
			return word(big.NewInt(1)), nil
		}
		return word(big.NewInt(0)), nil
	case selAllowance:
		owner, err := wordAddress(args, 0)
		if err != nil {
			return nil, err
		}
		spender, err := wordAddress(args, 1)
		if err != nil {
			return nil, err
		}
		return word(c.allowance(to, owner, spender)), nil
	default:
		return nil, errRevert
	}
}

func (c *Chain) ward(contract common.Address) map[common.Address]bool {
	w, ok := c.wards[contract]
	if !ok {
		w = make(map[common.Address]bool)
		c.wards[contract] = w
	}
	return w
}

func (c *Chain) allowance(token, owner, spender common.Address) *big.Int {
	if v, ok := c.allowances[token][owner][spender]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (c *Chain) setAllowance(token, owner, spender common.Address, value *big.Int) {
	byOwner, ok := c.allowances[token]
	if !ok {
		byOwner = make(map[common.Address]map[common.Address]*big.Int)
		c.allowances[token] = byOwner
	}
	bySpender, ok := byOwner[owner]
	if !ok {
		bySpender = make(map[common.Address]*big.Int)
		byOwner[owner] = bySpender
	}
	bySpender[spender] = new(big.Int).Set(value)
}

func selector(signature string) [4]byte {
	return [4]byte(crypto.Keccak256([]byte(signature))[:4])
}

func wordAt(args []byte, i int) ([]byte, error) {
	start := i * 32
	if len(args) < start+32 {
		return nil, fmt.Errorf("calldata too short for argument %d", i)
	}
	return args[start : start+32], nil
}

func wordAddress(args []byte, i int) (common.Address, error) {
	w, err := wordAt(args, i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w), nil
}

func wordUint(args []byte, i int) (*big.Int, error) {
	w, err := wordAt(args, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}
