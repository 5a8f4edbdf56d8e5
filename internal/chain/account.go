package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Default transaction parameters
const (
	DefaultGasPriceBoostPercent = 50
	DefaultFallbackGasLimit     = 10_000_000
	DefaultReceiptPollInterval  = 2 * time.Second
)

// AccountOptions tunes how an Account builds and tracks transactions.
type AccountOptions struct {
	// GasPriceBoostPercent is added on top of the suggested gas price.
	GasPriceBoostPercent int
	// FallbackGasLimit is used when gas estimation fails.
	FallbackGasLimit uint64
	// PollInterval is the delay between receipt lookups.
	PollInterval time.Duration
}

func (o *AccountOptions) applyDefaults() {
	if o.GasPriceBoostPercent < 0 {
		o.GasPriceBoostPercent = 0
	}
	if o.FallbackGasLimit == 0 {
		o.FallbackGasLimit = DefaultFallbackGasLimit
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultReceiptPollInterval
	}
}

// Account is a signing identity bound to the chain client of its layer.
// It submits transactions strictly one at a time and waits for each receipt.
type Account struct {
	layer  Layer
	client Client
	signer TransactionSigner
	logger *slog.Logger
	opts   AccountOptions
}

// NewAccount binds signer to client on the given layer.
func NewAccount(layer Layer, client Client, signer TransactionSigner, logger *slog.Logger, opts AccountOptions) *Account {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Account{
		layer:  layer,
		client: client,
		signer: signer,
		logger: logger.With(slog.String("layer", layer.String())),
		opts:   opts,
	}
}

// Layer returns the layer the account transacts on.
func (a *Account) Layer() Layer {
	return a.layer
}

// Address returns the signing address.
func (a *Account) Address() common.Address {
	return a.signer.Address()
}

// ChainID returns the chain ID the account signs for.
func (a *Account) ChainID() *big.Int {
	return a.signer.ChainID()
}

// Client returns the chain client.
func (a *Account) Client() Client {
	return a.client
}

// PredictNextContractAddress predicts where this account's next CREATE lands.
func (a *Account) PredictNextContractAddress(ctx context.Context) (common.Address, error) {
	addr, nonce, err := PredictNextContractAddress(ctx, a.client, a.Address())
	if err != nil {
		return common.Address{}, err
	}
	a.logger.Debug("predicted next contract address",
		slog.String("deployer", a.Address().Hex()),
		slog.Uint64("nonce", nonce),
		slog.String("address", addr.Hex()),
	)
	return addr, nil
}

// Deploy creates a contract from bytecode and ABI-encoded constructor arguments.
// It returns the deployed address and the creation receipt.
func (a *Account) Deploy(
	ctx context.Context,
	bytecode []byte,
	contractABI abi.ABI,
	constructorArgs ...interface{},
) (common.Address, *types.Receipt, error) {
	data, err := DeployContractData(bytecode, contractABI, constructorArgs...)
	if err != nil {
		return common.Address{}, nil, err
	}

	signedTx, receipt, err := a.submit(ctx, nil, data)
	if err != nil {
		return common.Address{}, receipt, err
	}

	addr := receipt.ContractAddress
	if addr == (common.Address{}) {
		// Some nodes omit contractAddress; derive it from the nonce the creation used.
		addr = crypto.CreateAddress(a.Address(), signedTx.Nonce())
	}
	return addr, receipt, nil
}

// Send submits a call to contract `to` with the given calldata and waits for it to be mined.
func (a *Account) Send(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	_, receipt, err := a.submit(ctx, &to, data)
	return receipt, err
}

// submit builds, signs, broadcasts and waits for a single legacy transaction.
func (a *Account) submit(ctx context.Context, to *common.Address, data []byte) (*types.Transaction, *types.Receipt, error) {
	from := a.Address()

	nonce, err := a.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := a.gasPrice(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get gas price: %w", err)
	}

	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       to,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     data,
	})
	if err != nil {
		gasLimit = a.opts.FallbackGasLimit
		a.logger.Warn("gas estimation failed, using default",
			slog.Uint64("gas_limit", gasLimit),
			slog.String("error", err.Error()),
		)
	}
	// Add 20% buffer
	gasLimit = gasLimit * 120 / 100

	var tx *types.Transaction
	if to == nil {
		tx = types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)
	} else {
		tx = types.NewTransaction(nonce, *to, big.NewInt(0), gasLimit, gasPrice, data)
	}

	signedTx, err := a.signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, nil, &TxError{Op: "sign transaction", Err: err}
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return signedTx, nil, &TxError{Op: "send transaction", Hash: signedTx.Hash(), Err: err}
	}

	a.logger.Debug("transaction submitted",
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
	)

	receipt, err := WaitForReceipt(ctx, a.client, signedTx.Hash(), a.opts.PollInterval)
	if err != nil {
		return signedTx, nil, &TxError{Op: "wait for receipt", Hash: signedTx.Hash(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return signedTx, receipt, &TxError{Op: "execute transaction", Hash: signedTx.Hash(), Err: ErrTransactionReverted}
	}

	return signedTx, receipt, nil
}

// gasPrice returns the suggested gas price raised by the configured boost.
func (a *Account) gasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	boosted := new(big.Int).Mul(gasPrice, big.NewInt(int64(100+a.opts.GasPriceBoostPercent)))
	return boosted.Div(boosted, big.NewInt(100)), nil
}

// ReceiptReader looks up transaction receipts.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// WaitForReceipt polls for the receipt of txHash until it is available or ctx is done.
func WaitForReceipt(ctx context.Context, r ReceiptReader, txHash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("get receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for transaction %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// DeployContractData appends the encoded constructor arguments to bytecode.
func DeployContractData(bytecode []byte, contractABI abi.ABI, constructorArgs ...interface{}) ([]byte, error) {
	if len(bytecode) == 0 {
		return nil, ErrEmptyBytecode
	}
	data := make([]byte, len(bytecode))
	copy(data, bytecode)

	if len(constructorArgs) == 0 && len(contractABI.Constructor.Inputs) == 0 {
		return data, nil
	}
	encodedArgs, err := contractABI.Pack("", constructorArgs...)
	if err != nil {
		return nil, fmt.Errorf("encode constructor args: %w", err)
	}
	return append(data, encodedArgs...), nil
}
