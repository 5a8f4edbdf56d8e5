package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// APIKeyHeader carries the remote signer's API key.
const APIKeyHeader = "X-API-Key"

// RemoteSignerConfig configures a RemoteSigner.
type RemoteSignerConfig struct {
	// Endpoint is the JSON-RPC URL serving eth_signTransaction.
	Endpoint string
	// APIKey is sent in the X-API-Key header when set.
	APIKey string
	// Address is the account the endpoint signs for.
	Address common.Address
	ChainID *big.Int

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *RemoteSignerConfig) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
}

// RemoteSigner delegates signing to a JSON-RPC endpoint implementing
// eth_signTransaction, such as a key management service or clef.
type RemoteSigner struct {
	config RemoteSignerConfig
	client *rpc.Client
}

// signTxArgs is the eth_signTransaction request object.
type signTxArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

// NewRemoteSigner dials the signing endpoint. No request is made until the first
// transaction is signed.
func NewRemoteSigner(ctx context.Context, cfg RemoteSignerConfig) (*RemoteSigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrRemoteSigner)
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: address is required", ErrRemoteSigner)
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("%w: chain ID is required", ErrRemoteSigner)
	}
	cfg.applyDefaults()

	var opts []rpc.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, rpc.WithHeader(APIKeyHeader, cfg.APIKey))
	}
	client, err := rpc.DialOptions(ctx, cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial remote signer: %w", err)
	}

	return &RemoteSigner{config: cfg, client: client}, nil
}

// Address returns the account the endpoint signs for.
func (s *RemoteSigner) Address() common.Address {
	return s.config.Address
}

// ChainID returns the chain ID sent with every signing request.
func (s *RemoteSigner) ChainID() *big.Int {
	return s.config.ChainID
}

// Close closes the RPC connection.
func (s *RemoteSigner) Close() {
	s.client.Close()
}

// SignTransaction asks the endpoint to sign tx, retrying transient failures with
// exponential backoff. The returned transaction must recover to Address.
func (s *RemoteSigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	args := s.buildArgs(tx)

	var lastErr error
	backoff := s.config.InitialBackoff

	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, s.config.MaxBackoff)
		}

		var result json.RawMessage
		err := s.client.CallContext(ctx, &result, "eth_signTransaction", args)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return nil, fmt.Errorf("%w: %v", ErrRemoteSigner, err)
			}
			continue
		}

		signed, err := decodeSignedTx(result)
		if err != nil {
			return nil, fmt.Errorf("%w: decode signed transaction: %v", ErrRemoteSigner, err)
		}
		if err := s.verify(tx, signed); err != nil {
			return nil, err
		}
		return signed, nil
	}

	return nil, fmt.Errorf("%w: signing failed after %d attempts: %v", ErrRemoteSigner, s.config.MaxRetries, lastErr)
}

func (s *RemoteSigner) buildArgs(tx *types.Transaction) signTxArgs {
	args := signTxArgs{
		From:    s.config.Address,
		To:      tx.To(),
		Gas:     hexutil.Uint64(tx.Gas()),
		Value:   (*hexutil.Big)(tx.Value()),
		Nonce:   hexutil.Uint64(tx.Nonce()),
		Data:    tx.Data(),
		ChainID: (*hexutil.Big)(s.config.ChainID),
	}

	switch tx.Type() {
	case types.DynamicFeeTxType:
		args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
		args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
	default:
		args.GasPrice = (*hexutil.Big)(tx.GasPrice())
	}
	return args
}

// verify rejects a signature from the wrong key or for a different transaction.
func (s *RemoteSigner) verify(want, got *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(s.config.ChainID), got)
	if err != nil {
		return fmt.Errorf("%w: recover sender: %v", ErrRemoteSigner, err)
	}
	if from != s.config.Address {
		return fmt.Errorf("%w: signed by %s, expected %s", ErrRemoteSigner, from.Hex(), s.config.Address.Hex())
	}
	if field := diffTx(want, got); field != "" {
		return fmt.Errorf("%w: signed transaction differs from request (%s)", ErrRemoteSigner, field)
	}
	return nil
}

// diffTx names the first field that differs between want and got, or returns "".
func diffTx(want, got *types.Transaction) string {
	switch {
	case got.Type() != want.Type():
		return "type"
	case got.Nonce() != want.Nonce():
		return "nonce"
	case got.Gas() != want.Gas():
		return "gas"
	case !addrPtrEqual(got.To(), want.To()):
		return "to"
	case got.Value().Cmp(want.Value()) != 0:
		return "value"
	case !bytes.Equal(got.Data(), want.Data()):
		return "data"
	case got.GasFeeCap().Cmp(want.GasFeeCap()) != 0:
		return "gas price"
	case got.GasTipCap().Cmp(want.GasTipCap()) != 0:
		return "gas tip"
	}
	return ""
}

// decodeSignedTx accepts either a raw hex string or geth's {"raw", "tx"} object.
func decodeSignedTx(result json.RawMessage) (*types.Transaction, error) {
	var raw hexutil.Bytes
	if err := json.Unmarshal(result, &raw); err != nil {
		var obj struct {
			Raw hexutil.Bytes `json:"raw"`
		}
		if err := json.Unmarshal(result, &obj); err != nil {
			return nil, err
		}
		raw = obj.Raw
	}
	if len(raw) == 0 {
		return nil, errors.New("empty result")
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return &tx, nil
}

// isRetryable reports whether err is a transport failure, an HTTP 5xx or a
// JSON-RPC server error (-32000 to -32099).
func isRetryable(err error) bool {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		return code >= -32099 && code <= -32000
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func addrPtrEqual(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var _ TransactionSigner = (*RemoteSigner)(nil)
