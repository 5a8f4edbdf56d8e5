package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/daibridge/internal/chain"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the next contract address of a deployer",
	Long: `Print the address the next contract created by the L1 or L2 deployer will get.

The prediction holds only as long as the deployer sends no other transaction.

Examples:
  bridgectl predict
  bridgectl predict --layer l2`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().String("layer", "l1", "Layer of the deployer (l1 or l2)")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	layerFlag, _ := cmd.Flags().GetString("layer")
	layer, err := chain.ParseLayer(layerFlag)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DeployTimeout)
	defer cancel()

	s, err := dialSession(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	account := s.deps.L1.Deployer
	if layer == chain.L2 {
		account = s.deps.L2.Deployer
	}

	addr, nonce, err := chain.PredictNextContractAddress(ctx, account.Client(), account.Address())
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"layer":    layer,
			"deployer": account.Address().Hex(),
			"nonce":    nonce,
			"address":  addr.Hex(),
		})
	}

	fmt.Printf("Layer:    %s\n", layer)
	fmt.Printf("Deployer: %s\n", account.Address().Hex())
	fmt.Printf("Nonce:    %d\n", nonce)
	fmt.Printf("Next:     %s\n", addr.Hex())
	return nil
}
