package chain_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/daibridge/internal/chain"
	"github.com/Bidon15/daibridge/internal/chain/chaintest"
)

const wardsABI = `[
	{"inputs":[{"name":"l1Address","type":"address"}],"stateMutability":"nonpayable","type":"constructor"},
	{"inputs":[{"name":"usr","type":"address"}],"name":"rely","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"","type":"address"}],"name":"wards","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var fakeBytecode = []byte{0x60, 0x80, 0x60, 0x40, 0x52}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAccount(t *testing.T, c chain.Client, keyIndex int, chainID int64) *chain.Account {
	t.Helper()
	signer, err := chain.NewDevSigner(keyIndex, chainID)
	require.NoError(t, err)
	return chain.NewAccount(chain.L1, c, signer, testLogger(), chain.AccountOptions{PollInterval: time.Millisecond})
}

func parseABI(t *testing.T, raw string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raw))
	require.NoError(t, err)
	return parsed
}

func TestPredictNextContractAddress(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.New(1337)
	account := newTestAccount(t, fake, 0, 1337)
	contractABI := parseABI(t, wardsABI)

	for i := 0; i < 3; i++ {
		predicted, err := account.PredictNextContractAddress(ctx)
		require.NoError(t, err)

		deployed, _, err := account.Deploy(ctx, fakeBytecode, contractABI, common.HexToAddress("0x01"))
		require.NoError(t, err)
		assert.Equal(t, predicted, deployed, "deployment %d", i)
		assert.Equal(t, crypto.CreateAddress(account.Address(), uint64(i)), deployed)
	}
}

func TestPredictNextContractAddress_InterleavedTransaction(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.New(1337)
	account := newTestAccount(t, fake, 0, 1337)
	contractABI := parseABI(t, wardsABI)

	predicted, err := account.PredictNextContractAddress(ctx)
	require.NoError(t, err)

	_, err = account.Send(ctx, common.HexToAddress("0x000000000000000000000000000000000000dEaD"), nil)
	require.NoError(t, err)

	deployed, _, err := account.Deploy(ctx, fakeBytecode, contractABI, common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.NotEqual(t, predicted, deployed)
}

type mockNonceReader struct {
	mock.Mock
}

func (m *mockNonceReader) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func TestPredictNextContractAddress_KnownVectors(t *testing.T) {
	ctx := context.Background()
	deployer := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	tests := []struct {
		nonce uint64
		want  common.Address
	}{
		{0, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")},
		{1, common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")},
		{2, common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")},
	}

	for _, tt := range tests {
		reader := new(mockNonceReader)
		reader.On("PendingNonceAt", ctx, deployer).Return(tt.nonce, nil)

		got, nonce, err := chain.PredictNextContractAddress(ctx, reader, deployer)
		require.NoError(t, err)
		assert.Equal(t, tt.nonce, nonce)
		assert.Equal(t, tt.want, got)
		reader.AssertExpectations(t)
	}
}

func TestPredictNextContractAddress_NonceError(t *testing.T) {
	ctx := context.Background()
	reader := new(mockNonceReader)
	reader.On("PendingNonceAt", ctx, mock.Anything).Return(uint64(0), errors.New("connection refused"))

	_, _, err := chain.PredictNextContractAddress(ctx, reader, common.Address{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get nonce")
}

func TestAccountDeploy_EncodesConstructorArgs(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.New(1337)
	account := newTestAccount(t, fake, 0, 1337)
	contractABI := parseABI(t, wardsABI)
	arg := common.HexToAddress("0xd9e66A2f546880EA4d800F189d6F12Cc15Bff281")

	_, receipt, err := account.Deploy(ctx, fakeBytecode, contractABI, arg)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	mined := fake.Mined()
	require.Len(t, mined, 1)
	data := mined[0].Tx.Data()
	assert.Equal(t, fakeBytecode, data[:len(fakeBytecode)])
	assert.Equal(t, common.LeftPadBytes(arg.Bytes(), 32), data[len(fakeBytecode):])
	assert.Nil(t, mined[0].Tx.To())
	assert.Equal(t, account.Address(), mined[0].From)
}

func TestAccountDeploy_EmptyBytecode(t *testing.T) {
	fake := chaintest.New(1337)
	account := newTestAccount(t, fake, 0, 1337)

	_, _, err := account.Deploy(context.Background(), nil, parseABI(t, wardsABI), common.Address{})
	assert.ErrorIs(t, err, chain.ErrEmptyBytecode)
	assert.Empty(t, fake.Mined())
}

func TestAccountDeploy_ReceiptWithoutContractAddress(t *testing.T) {
	fake := chaintest.New(1337)
	// Some nodes leave contractAddress empty.
	fake.OnMined = func(m chaintest.Mined) {
		m.Receipt.ContractAddress = common.Address{}
	}
	account := newTestAccount(t, fake, 0, 1337)

	// Move the nonce off zero first.
	_, _, err := account.Deploy(context.Background(), fakeBytecode, parseABI(t, wardsABI), common.Address{})
	require.NoError(t, err)

	addr, receipt, err := account.Deploy(context.Background(), fakeBytecode, parseABI(t, wardsABI), common.Address{})
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, receipt.ContractAddress)
	assert.Equal(t, crypto.CreateAddress(account.Address(), 1), addr)

	code, err := fake.CodeAt(context.Background(), addr, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestAccountSend_Reverted(t *testing.T) {
	ctx := context.Background()
	fake := chaintest.New(1337)
	fake.RevertIf = func(common.Address, *types.Transaction) bool { return true }
	account := newTestAccount(t, fake, 0, 1337)

	receipt, err := account.Send(ctx, common.HexToAddress("0x01"), []byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrTransactionReverted)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)

	var txErr *chain.TxError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, receipt.TxHash, txErr.Hash)
}

func TestAccountSend_SubmissionFailure(t *testing.T) {
	fake := chaintest.New(1337)
	fake.SendErr = errors.New("insufficient funds for gas * price + value")
	account := newTestAccount(t, fake, 0, 1337)

	_, err := account.Send(context.Background(), common.HexToAddress("0x01"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send transaction")
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestAccountSend_GasEstimationFallback(t *testing.T) {
	fake := chaintest.New(1337)
	fake.EstimateErr = errors.New("execution reverted")
	signer, err := chain.NewDevSigner(0, 1337)
	require.NoError(t, err)
	account := chain.NewAccount(chain.L1, fake, signer, testLogger(), chain.AccountOptions{
		GasPriceBoostPercent: chain.DefaultGasPriceBoostPercent,
		PollInterval:         time.Millisecond,
	})

	_, err = account.Send(context.Background(), common.HexToAddress("0x01"), nil)
	require.NoError(t, err)

	mined := fake.Mined()
	require.Len(t, mined, 1)
	assert.Equal(t, uint64(chain.DefaultFallbackGasLimit*120/100), mined[0].Tx.Gas())
	// 1 gwei + 50%
	assert.Equal(t, big.NewInt(1_500_000_000), mined[0].Tx.GasPrice())
}

type notFoundThenReceipt struct {
	calls   int
	receipt *types.Receipt
}

func (r *notFoundThenReceipt) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	r.calls++
	if r.calls < 3 {
		return nil, ethereum.NotFound
	}
	return r.receipt, nil
}

func TestWaitForReceipt(t *testing.T) {
	t.Run("polls until found", func(t *testing.T) {
		r := &notFoundThenReceipt{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful}}
		receipt, err := chain.WaitForReceipt(context.Background(), r, common.Hash{}, time.Millisecond)
		require.NoError(t, err)
		assert.Same(t, r.receipt, receipt)
		assert.Equal(t, 3, r.calls)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &notFoundThenReceipt{}
		_, err := chain.WaitForReceipt(ctx, r, common.Hash{}, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
