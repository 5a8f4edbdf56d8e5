package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bidon15/daibridge/internal/bridge"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show the contracts of a recorded deployment",
	Long: `Attach to an existing deployment using the addresses recorded for --network.

The "default" network falls back to the built-in shared test deployment when the
records file has no entry for it. Without --check no RPC request is made.

Examples:
  bridgectl locate
  bridgectl locate --network devnet --check`,
	RunE: runLocate,
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List recorded deployments",
	RunE:  runNetworks,
}

func init() {
	locateCmd.Flags().Bool("check", false, "Verify that code exists at every address")

	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(networksCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	check, _ := cmd.Flags().GetBool("check")

	if err := cfg.Validate(); err != nil {
		return err
	}

	records, err := bridge.LoadRecords(cfg.RecordsFile)
	if err != nil {
		return err
	}
	book, err := records.Get(cfg.Network)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DeployTimeout)
	defer cancel()

	s, err := dialSession(ctx, cfg, check)
	if err != nil {
		return err
	}
	defer s.Close()

	deployment, err := bridge.Locate(s.deps, book)
	if err != nil {
		return err
	}

	var hasCode map[bridge.Role]bool
	if check {
		hasCode = make(map[bridge.Role]bool, len(bridge.Roles))
		for _, role := range bridge.Roles {
			ok, err := deployment.Contract(role).HasCode(ctx)
			if err != nil {
				return err
			}
			hasCode[role] = ok
		}
	}

	if jsonOut {
		out := map[string]interface{}{
			"network":   book.Network,
			"id":        book.ID,
			"addresses": deployment.Addresses(),
		}
		if hasCode != nil {
			out["has_code"] = hasCode
		}
		return printJSON(out)
	}

	fmt.Printf("Network: %s\n", book.Network)
	if book.ID != "" {
		fmt.Printf("ID:      %s\n", book.ID)
	}
	if !book.DeployedAt.IsZero() {
		fmt.Printf("Created: %s\n", book.DeployedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println()
	return printAddresses(deployment, hasCode)
}

func runNetworks(cmd *cobra.Command, args []string) error {
	records, err := bridge.LoadRecords(cfg.RecordsFile)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"networks": records.Networks(),
			"count":    len(records.Records),
		})
	}

	if len(records.Records) == 0 {
		fmt.Printf("No deployments recorded in %s\n", cfg.RecordsFile)
		return nil
	}

	w := newTable()
	printTableHeader(w, "NETWORK", "ID", "L1 CHAIN", "L2 CHAIN", "DEPLOYED")
	for _, name := range records.Networks() {
		b := records.Records[name]
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			name,
			b.ID,
			b.L1ChainID,
			b.L2ChainID,
			b.DeployedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
