package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/daibridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long:  `Commands for inspecting the bridgectl configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging defaults, the config file, environment
variables and flags. Private keys are masked.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	r := cfg.Redacted()

	rows := []struct {
		key   string
		value interface{}
	}{
		{"network", r.Network},
		{"artifacts_dir", r.ArtifactsDir},
		{"records_file", r.RecordsFile},
		{"log_level", r.LogLevel},
		{"deploy_timeout", r.DeployTimeout},
		{"gas_price_boost_percent", r.GasPriceBoostPercent},
		{"l1.rpc_url", r.L1.RPCURL},
		{"l1.chain_id", r.L1.ChainID},
		{"l1.private_key", keyOrDefault(r.L1.ChainConfig)},
		{"l1.signer_url", r.L1.SignerURL},
		{"l1.signer_api_key", r.L1.SignerAPIKey},
		{"l1.signer_address", r.L1.SignerAddress},
		{"l1.dai", r.L1.Dai},
		{"l1.router", r.L1.Router},
		{"l1.inbox", r.L1.Inbox},
		{"l2.rpc_url", r.L2.RPCURL},
		{"l2.chain_id", r.L2.ChainID},
		{"l2.private_key", keyOrDefault(r.L2.ChainConfig)},
		{"l2.signer_url", r.L2.SignerURL},
		{"l2.signer_api_key", r.L2.SignerAPIKey},
		{"l2.signer_address", r.L2.SignerAddress},
		{"l2.router", r.L2.Router},
		{"l2.arb_retryable_tx", r.L2.ArbRetryableTx},
	}

	if jsonOut {
		out := make(map[string]interface{}, len(rows))
		for _, row := range rows {
			out[row.key] = fmt.Sprint(row.value)
		}
		return printJSON(out)
	}

	w := newTable()
	printTableHeader(w, "KEY", "VALUE", "ENV")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%v\t%s\n", row.key, row.value, config.EnvName(row.key))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\n%s %v\n", colorYellow("⚠"), err)
	}
	return nil
}

func keyOrDefault(c config.ChainConfig) string {
	if c.PrivateKey == "" && c.SignerURL == "" {
		return "<dev account 0>"
	}
	return c.PrivateKey
}
