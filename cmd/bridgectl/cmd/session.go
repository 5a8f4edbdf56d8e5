package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Bidon15/daibridge/internal/bridge"
	"github.com/Bidon15/daibridge/internal/chain"
	"github.com/Bidon15/daibridge/internal/config"
)

// session holds the RPC connections and deployer accounts of one command run.
type session struct {
	clients []*ethclient.Client
	remotes []*chain.RemoteSigner
	deps    bridge.Dependencies
}

// dialSession opens the session of a command; tests replace it.
var dialSession = connect

// connect dials both layers and binds the configured signers to them. With verify
// set, each endpoint's chain ID is checked against the configuration; otherwise no
// request is made until a handle is used.
func connect(ctx context.Context, c *config.Config, verify bool) (*session, error) {
	s := &session{}

	l1, err := s.account(ctx, chain.L1, c.L1.ChainConfig, c.GasPriceBoostPercent, verify)
	if err != nil {
		s.Close()
		return nil, err
	}
	l2, err := s.account(ctx, chain.L2, c.L2.ChainConfig, c.GasPriceBoostPercent, verify)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.deps = bridge.Dependencies{
		L1: bridge.L1Dependencies{
			Deployer: l1,
			Dai:      common.HexToAddress(c.L1.Dai),
			Router:   common.HexToAddress(c.L1.Router),
			Inbox:    common.HexToAddress(c.L1.Inbox),
		},
		L2: bridge.L2Dependencies{
			Deployer:       l2,
			Router:         common.HexToAddress(c.L2.Router),
			ArbRetryableTx: common.HexToAddress(c.L2.ArbRetryableTx),
		},
	}
	return s, nil
}

func (s *session) account(
	ctx context.Context,
	layer chain.Layer,
	c config.ChainConfig,
	gasPriceBoost int,
	verify bool,
) (*chain.Account, error) {
	signer, err := newSigner(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%s signer: %w", layer, err)
	}
	if remote, ok := signer.(*chain.RemoteSigner); ok {
		s.remotes = append(s.remotes, remote)
	}

	var client *ethclient.Client
	if verify {
		client, err = chain.Dial(ctx, c.RPCURL, c.ChainID)
	} else {
		client, err = ethclient.DialContext(ctx, c.RPCURL)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", layer, err)
	}
	s.clients = append(s.clients, client)

	return chain.NewAccount(layer, client, signer, logger, chain.AccountOptions{
		GasPriceBoostPercent: gasPriceBoost,
	}), nil
}

// Close releases the RPC connections.
func (s *session) Close() {
	for _, c := range s.clients {
		c.Close()
	}
	s.clients = nil
	for _, r := range s.remotes {
		r.Close()
	}
	s.remotes = nil
}

// newSigner uses the remote signer or the configured key, falling back to the first
// development account when neither is set.
func newSigner(ctx context.Context, c config.ChainConfig) (chain.TransactionSigner, error) {
	if c.SignerURL != "" {
		return chain.NewRemoteSigner(ctx, chain.RemoteSignerConfig{
			Endpoint: c.SignerURL,
			APIKey:   c.SignerAPIKey,
			Address:  common.HexToAddress(c.SignerAddress),
			ChainID:  big.NewInt(c.ChainID),
		})
	}
	if c.PrivateKey == "" {
		return chain.NewDevSigner(0, c.ChainID)
	}
	return chain.NewLocalSigner(c.PrivateKey, c.ChainID)
}
