package bridge

import (
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/daibridge/internal/chain"
	"github.com/Bidon15/daibridge/internal/chain/chaintest"
)

const (
	testL1ChainID = 1337
	testL2ChainID = 412346
)

var (
	testL1Dai    = common.HexToAddress("0xd9e66A2f546880EA4d800F189d6F12Cc15Bff281")
	testL1Router = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testL1Inbox  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testL2Router = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

// testBytecode returns distinct init code per contract so creations are distinguishable.
func testBytecode(contract string) string {
	return "0x6080604052" + hex.EncodeToString([]byte(contract))
}

func testArtifacts(t *testing.T) *Artifacts {
	t.Helper()
	contracts := make(map[string]*Artifact, len(DeployableContracts))
	for _, name := range DeployableContracts {
		raw, err := EmbeddedABI(name)
		require.NoError(t, err)
		contracts[name] = &Artifact{ABI: raw, Bytecode: NewBytecode(testBytecode(name))}
	}
	return NewArtifacts("test", contracts)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv is a pair of fake chains with one funded deployer on each.
type testEnv struct {
	l1, l2 *chaintest.Chain
	deps   Dependencies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	l1 := chaintest.New(testL1ChainID)
	l2 := chaintest.New(testL2ChainID)
	// L1 Dai already exists on L1.
	l1.SetCode(testL1Dai, []byte{0x60, 0x80})

	l1Signer, err := chain.NewDevSigner(0, testL1ChainID)
	require.NoError(t, err)
	l2Signer, err := chain.NewDevSigner(1, testL2ChainID)
	require.NoError(t, err)

	opts := chain.AccountOptions{PollInterval: time.Millisecond}
	return &testEnv{
		l1: l1,
		l2: l2,
		deps: Dependencies{
			L1: L1Dependencies{
				Deployer: chain.NewAccount(chain.L1, l1, l1Signer, testLogger(), opts),
				Dai:      testL1Dai,
				Router:   testL1Router,
				Inbox:    testL1Inbox,
			},
			L2: L2Dependencies{
				Deployer:       chain.NewAccount(chain.L2, l2, l2Signer, testLogger(), opts),
				Router:         testL2Router,
				ArbRetryableTx: DefaultArbRetryableTx,
			},
		},
	}
}
