package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/daibridge/internal/bridge"
	"github.com/Bidon15/daibridge/internal/chain"
	"github.com/Bidon15/daibridge/internal/chain/chaintest"
	"github.com/Bidon15/daibridge/internal/config"
)

const testL1Dai = "0xd9e66A2f546880EA4d800F189d6F12Cc15Bff281"

// deployFixture wires runDeploy to two in-memory chains.
type deployFixture struct {
	l1, l2 *chaintest.Chain
	dialed bool
}

func newDeployFixture(t *testing.T, network, recordsFile string) *deployFixture {
	t.Helper()

	f := &deployFixture{
		l1: chaintest.New(1337),
		l2: chaintest.New(412346),
	}

	prevCfg, prevLogger, prevJSON, prevDial := cfg, logger, jsonOut, dialSession
	t.Cleanup(func() {
		cfg, logger, jsonOut, dialSession = prevCfg, prevLogger, prevJSON, prevDial
	})

	cfg = &config.Config{
		Network:              network,
		ArtifactsDir:         writeArtifacts(t),
		RecordsFile:          recordsFile,
		LogLevel:             "info",
		DeployTimeout:        time.Minute,
		GasPriceBoostPercent: 50,
		L1: config.L1Config{
			ChainConfig: config.ChainConfig{RPCURL: "http://127.0.0.1:1", ChainID: 1337},
			Dai:         testL1Dai,
			Router:      "0x1111111111111111111111111111111111111111",
			Inbox:       "0x2222222222222222222222222222222222222222",
		},
		L2: config.L2Config{
			ChainConfig:    config.ChainConfig{RPCURL: "http://127.0.0.1:1", ChainID: 412346},
			Router:         "0x3333333333333333333333333333333333333333",
			ArbRetryableTx: "0x000000000000000000000000000000000000006E",
		},
	}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	jsonOut = true

	dialSession = func(ctx context.Context, c *config.Config, verify bool) (*session, error) {
		f.dialed = true
		l1Signer, err := chain.NewDevSigner(0, c.L1.ChainID)
		require.NoError(t, err)
		l2Signer, err := chain.NewDevSigner(1, c.L2.ChainID)
		require.NoError(t, err)

		opts := chain.AccountOptions{PollInterval: time.Millisecond}
		s := &session{}
		s.deps.L1 = bridge.L1Dependencies{
			Deployer: chain.NewAccount(chain.L1, f.l1, l1Signer, logger, opts),
			Dai:      common.HexToAddress(c.L1.Dai),
			Router:   common.HexToAddress(c.L1.Router),
			Inbox:    common.HexToAddress(c.L1.Inbox),
		}
		s.deps.L2 = bridge.L2Dependencies{
			Deployer:       chain.NewAccount(chain.L2, f.l2, l2Signer, logger, opts),
			Router:         common.HexToAddress(c.L2.Router),
			ArbRetryableTx: common.HexToAddress(c.L2.ArbRetryableTx),
		}
		return s, nil
	}
	return f
}

// writeArtifacts lays out a Foundry out/ directory for the deployable contracts.
func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range bridge.DeployableContracts {
		raw, err := bridge.EmbeddedABI(name)
		require.NoError(t, err)
		data, err := json.Marshal(map[string]interface{}{
			"abi":      raw,
			"bytecode": map[string]string{"object": "0x6080604052" + hex.EncodeToString([]byte(name))},
		})
		require.NoError(t, err)
		path := filepath.Join(dir, name+".sol", name+".json")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return dir
}

func newDeployCommand() *cobra.Command {
	c := &cobra.Command{}
	c.Flags().String("artifacts", "", "")
	c.Flags().Bool("no-save", false, "")
	return c
}

// captureStdout returns what fn writes to os.Stdout.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	orig := os.Stdout
	os.Stdout = w
	runErr := fn()
	os.Stdout = orig
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), runErr
}

func TestRunDeploy_UnusableRecordsFileSendsNothing(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIs  error
	}{
		{"unsupported version", "version: 2\nrecords: {}\n", bridge.ErrUnsupportedRecordFile},
		{"malformed", "version: [1\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "deployments.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			f := newDeployFixture(t, "devnet", path)

			err := runDeploy(newDeployCommand(), nil)
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Contains(t, err.Error(), "nothing deployed")

			assert.False(t, f.dialed)
			assert.Empty(t, f.l1.Mined())
			assert.Empty(t, f.l2.Mined())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestRunDeploy_SavesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.yaml")
	f := newDeployFixture(t, "devnet", path)

	out, err := captureStdout(t, func() error { return runDeploy(newDeployCommand(), nil) })
	require.NoError(t, err)

	var result struct {
		Saved  bool                `json:"saved"`
		Record *bridge.AddressBook `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Saved)
	require.NotNil(t, result.Record)

	records, err := bridge.LoadRecords(path)
	require.NoError(t, err)
	book, err := records.Get("devnet")
	require.NoError(t, err)
	assert.Equal(t, result.Record.ID, book.ID)

	escrow, err := book.Address(bridge.RoleL1Escrow)
	require.NoError(t, err)
	gateway, err := book.Address(bridge.RoleL1DaiGateway)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{escrow, gateway}, f.l1.Creations())
}

func TestRunDeploy_PrintsDeploymentWhenRecordIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.yaml")
	network := strings.Repeat("n", 65)
	f := newDeployFixture(t, network, path)

	out, err := captureStdout(t, func() error { return runDeploy(newDeployCommand(), nil) })
	require.ErrorIs(t, err, bridge.ErrInvalidRecord)
	assert.Contains(t, err.Error(), "deployed but not recorded")

	var result struct {
		Saved  bool                `json:"saved"`
		Record *bridge.AddressBook `json:"record"`
		Report *bridge.Report      `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Saved)
	require.NotNil(t, result.Record)

	gateway, err := result.Record.Address(bridge.RoleL1DaiGateway)
	require.NoError(t, err)
	assert.Equal(t, f.l1.Creations()[1], gateway)
	require.NotNil(t, result.Report)
	assert.Len(t, result.Report.Steps, 6)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadCommands_RejectZeroTimeoutBeforeDialing(t *testing.T) {
	f := newDeployFixture(t, "devnet", filepath.Join(t.TempDir(), "deployments.yaml"))
	cfg.DeployTimeout = 0

	predict := &cobra.Command{}
	predict.Flags().String("layer", "l1", "")
	assert.ErrorIs(t, runPredict(predict, nil), config.ErrInvalidConfig)

	locate := &cobra.Command{}
	locate.Flags().Bool("check", true, "")
	assert.ErrorIs(t, runLocate(locate, nil), config.ErrInvalidConfig)

	assert.False(t, f.dialed)
}
