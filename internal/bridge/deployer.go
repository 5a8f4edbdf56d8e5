package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/Bidon15/daibridge/internal/chain"
)

// Deployer creates a fresh bridge deployment from compiled artifacts.
type Deployer struct {
	artifacts *Artifacts
	logger    *slog.Logger
}

// NewDeployer creates a deployer that takes creation code from artifacts.
func NewDeployer(artifacts *Artifacts, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		artifacts: artifacts,
		logger:    logger,
	}
}

// Deploy creates the escrow, the L2 token and both gateways, then wires their
// permissions. The L2 gateway is constructed with the address the L1 gateway is
// predicted to land at, so the L1 deployer must not send any other transaction
// until Deploy returns. A wrong prediction fails with *AddressMismatchError.
//
// Deploy is not idempotent. On failure, contracts created by earlier steps stay on
// chain and nothing is retried.
func (d *Deployer) Deploy(ctx context.Context, deps Dependencies) (*Deployment, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}

	code, err := d.compile()
	if err != nil {
		return nil, err
	}

	l1, l2 := deps.L1.Deployer, deps.L2.Deployer
	report := &Report{}

	d.logger.Info("deploying dai bridge",
		slog.String("l1_deployer", l1.Address().Hex()),
		slog.String("l2_deployer", l2.Address().Hex()),
		slog.String("artifacts", d.artifacts.Source()),
	)

	// Step 1: escrow holding bridged L1 Dai
	l1Escrow, err := d.deploy(ctx, report, l1, RoleL1Escrow, code[ContractL1Escrow])
	if err != nil {
		return nil, err
	}

	// Step 2: L2 Dai
	l2Dai, err := d.deploy(ctx, report, l2, RoleL2Dai, code[ContractArbDai], deps.L1.Dai)
	if err != nil {
		return nil, err
	}

	// Step 3: the L1 gateway is the L1 deployer's next creation
	predicted, err := l1.PredictNextContractAddress(ctx)
	if err != nil {
		return nil, fmt.Errorf("predict l1DaiGateway address: %w", err)
	}
	report.PredictedL1DaiGateway = predicted
	d.logger.Info("predicted l1DaiGateway address", slog.String("address", predicted.Hex()))

	// Step 4: L2 gateway pointing at the future L1 gateway
	l2Gateway, err := d.deploy(ctx, report, l2, RoleL2DaiGateway, code[ContractL2DaiGateway],
		predicted,
		deps.L2.Router,
		deps.L1.Dai,
		l2Dai.Address(),
	)
	if err != nil {
		return nil, err
	}

	// Step 5: let the L2 gateway mint and burn L2 Dai
	if err := d.transact(ctx, report, l2Dai, "rely", l2Gateway.Address()); err != nil {
		return nil, err
	}

	// Step 6: L1 gateway
	l1Gateway, err := d.deploy(ctx, report, l1, RoleL1DaiGateway, code[ContractL1DaiGateway],
		l2Gateway.Address(),
		deps.L1.Router,
		deps.L1.Inbox,
		deps.L1.Dai,
		l2Dai.Address(),
		l1Escrow.Address(),
	)
	if err != nil {
		return nil, err
	}

	// Step 7: the L2 gateway is bound to the predicted address
	if l1Gateway.Address() != predicted {
		d.logger.Error("l1DaiGateway address mismatch",
			slog.String("predicted", predicted.Hex()),
			slog.String("actual", l1Gateway.Address().Hex()),
		)
		return nil, &AddressMismatchError{Predicted: predicted, Actual: l1Gateway.Address()}
	}

	// Step 8: let the L1 gateway move Dai out of the escrow
	if err := d.transact(ctx, report, l1Escrow, "approve", deps.L1.Dai, l1Gateway.Address(), math.MaxBig256); err != nil {
		return nil, err
	}

	l1Dai, err := attach(RoleL1Dai, deps.L1.Dai, l1)
	if err != nil {
		return nil, err
	}
	arbRetryableTx, err := attach(RoleArbRetryableTx, deps.L2.ArbRetryableTx, l2)
	if err != nil {
		return nil, err
	}

	d.logger.Info("dai bridge deployed",
		slog.String("l1_dai_gateway", l1Gateway.Address().Hex()),
		slog.String("l2_dai_gateway", l2Gateway.Address().Hex()),
		slog.Int("transactions", len(report.Steps)),
	)

	return &Deployment{
		L1DaiGateway:   l1Gateway,
		L1Escrow:       l1Escrow,
		L2Dai:          l2Dai,
		L2DaiGateway:   l2Gateway,
		L1Dai:          l1Dai,
		ArbRetryableTx: arbRetryableTx,
		Report:         report,
	}, nil
}

// compiled is an artifact ready to be deployed.
type compiled struct {
	abi      abi.ABI
	bytecode []byte
}

// compile loads and decodes every deployable artifact so that a broken build
// output is reported before the first transaction is sent.
func (d *Deployer) compile() (map[string]compiled, error) {
	out := make(map[string]compiled, len(DeployableContracts))
	for _, name := range DeployableContracts {
		artifact, err := d.artifacts.Get(name)
		if err != nil {
			return nil, err
		}
		contractABI, err := artifact.ParsedABI()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
		}
		bytecode, err := artifact.Bytecode.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
		}
		if len(bytecode) == 0 {
			return nil, fmt.Errorf("%w: %s has no bytecode", ErrInvalidArtifact, name)
		}
		out[name] = compiled{abi: contractABI, bytecode: bytecode}
	}
	return out, nil
}

// deploy creates the contract behind role and returns a handle bound to account.
func (d *Deployer) deploy(
	ctx context.Context,
	report *Report,
	account *chain.Account,
	role Role,
	code compiled,
	constructorArgs ...interface{},
) (*chain.Contract, error) {
	name := role.Contract()

	addr, receipt, err := account.Deploy(ctx, code.bytecode, code.abi, constructorArgs...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", name, err)
	}
	report.add("deploy "+name, account.Layer(), receipt.TxHash, addr)

	d.logger.Info("deployed contract",
		slog.String("role", role.String()),
		slog.String("contract", name),
		slog.String("layer", account.Layer().String()),
		slog.String("address", addr.Hex()),
		slog.String("tx_hash", receipt.TxHash.Hex()),
	)

	return chain.NewContract(name, addr, code.abi, account), nil
}

func (d *Deployer) transact(ctx context.Context, report *Report, c *chain.Contract, method string, args ...interface{}) error {
	receipt, err := c.Transact(ctx, method, args...)
	if err != nil {
		return err
	}
	step := c.Name() + "." + method
	report.add(step, c.Layer(), receipt.TxHash, common.Address{})

	d.logger.Info("sent transaction",
		slog.String("call", step),
		slog.String("layer", c.Layer().String()),
		slog.String("tx_hash", receipt.TxHash.Hex()),
	)
	return nil
}
