package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalSigner(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    common.Address
		wantErr bool
	}{
		{
			name: "plain hex",
			key:  DevPrivateKeys[0],
			want: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		},
		{
			name: "0x prefix",
			key:  "0x" + DevPrivateKeys[1],
			want: common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		},
		{
			name:    "invalid",
			key:     "not-a-key",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewLocalSigner(tt.key, 31337)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPrivateKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, signer.Address())
			assert.Equal(t, int64(31337), signer.ChainID().Int64())
		})
	}
}

func TestLocalSignerSignTransaction(t *testing.T) {
	chainID := big.NewInt(1337)
	signer, err := NewLocalSigner(DevPrivateKeys[0], chainID.Int64())
	require.NoError(t, err)

	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	tx := types.NewTransaction(0, to, big.NewInt(1), 21000, big.NewInt(1e9), nil)

	signedTx, err := signer.SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signedTx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from, "recovered address should match signer address")
	assert.Equal(t, chainID, signedTx.ChainId())
}

func TestNewDevSigner(t *testing.T) {
	t.Run("local chain", func(t *testing.T) {
		signer, err := NewDevSigner(9, 412346)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xa0Ee7A142d267C1f36714E4a8F75612F20a79720"), signer.Address())
	})

	t.Run("refuses production chains", func(t *testing.T) {
		for _, id := range []int64{1, 10, 42161} {
			_, err := NewDevSigner(0, id)
			assert.ErrorIs(t, err, ErrProductionChain, "chain %d", id)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := NewDevSigner(len(DevPrivateKeys), 1337)
		assert.Error(t, err)
	})
}

func TestIsDevKey(t *testing.T) {
	assert.True(t, IsDevKey(DevPrivateKeys[3]))
	assert.True(t, IsDevKey("0x"+DevPrivateKeys[3]))
	assert.True(t, IsDevKey("0xAC0974BEC39A17E36BA4A6B4D238FF944BACB478CBED5EFCAE784D7BF4F2FF80"))
	assert.False(t, IsDevKey("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"))
}

func TestParseLayer(t *testing.T) {
	l, err := ParseLayer("l1")
	require.NoError(t, err)
	assert.Equal(t, L1, l)

	l, err = ParseLayer("l2")
	require.NoError(t, err)
	assert.Equal(t, L2, l)

	_, err = ParseLayer("L3")
	assert.Error(t, err)
}
