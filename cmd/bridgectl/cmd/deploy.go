package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Bidon15/daibridge/internal/bridge"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a fresh Dai bridge",
	Long: `Deploy L1Escrow, ArbDai, L2DaiGateway and L1DaiGateway, grant the L2 gateway
mint rights on ArbDai and approve the L1 gateway on the escrow.

The L2 gateway is created with the predicted address of the L1 gateway. Do not
send any other transaction from the L1 deployer while the deployment runs.

The resulting addresses are stored under --network in the records file.

Examples:
  bridgectl deploy
  bridgectl deploy --network devnet --artifacts ./out
  bridgectl deploy --no-save --json`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().String("artifacts", "", "Hardhat artifacts/ or Foundry out/ directory (overrides artifacts_dir)")
	deployCmd.Flags().Bool("no-save", false, "Do not write the deployment to the records file")

	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	if dir, _ := cmd.Flags().GetString("artifacts"); dir != "" {
		cfg.ArtifactsDir = dir
	}
	noSave, _ := cmd.Flags().GetBool("no-save")

	if err := cfg.ValidateDeploy(); err != nil {
		return err
	}

	artifacts, err := bridge.LoadArtifacts(cfg.ArtifactsDir)
	if err != nil {
		return err
	}

	// The records file must be usable before anything is sent.
	var records *bridge.Records
	if !noSave {
		records, err = bridge.LoadRecords(cfg.RecordsFile)
		if err != nil {
			return fmt.Errorf("nothing deployed: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.DeployTimeout)
	defer cancel()

	s, err := dialSession(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if !jsonOut {
		fmt.Printf("%s Deploying Dai bridge (network %s)\n", colorYellow("→"), cfg.Network)
		fmt.Printf("  L1 deployer: %s\n", s.deps.L1.Deployer.Address().Hex())
		fmt.Printf("  L2 deployer: %s\n", s.deps.L2.Deployer.Address().Hex())
	}

	deployment, err := bridge.NewDeployer(artifacts, logger).Deploy(ctx, s.deps)
	if err != nil {
		return err
	}

	book := bridge.NewAddressBook(cfg.Network, deployment)

	// The bridge is live from here on; print it even if it cannot be recorded.
	var saveErr error
	if !noSave {
		saveErr = saveRecord(records, book, cfg.RecordsFile)
	}
	saved := !noSave && saveErr == nil

	if jsonOut {
		if err := printJSON(map[string]interface{}{
			"record": book,
			"report": deployment.Report,
			"saved":  saved,
		}); err != nil {
			return err
		}
		return saveErr
	}

	fmt.Printf("%s Dai bridge deployed\n\n", colorGreen("✓"))
	if err := printAddresses(deployment, nil); err != nil {
		return err
	}
	if saved {
		fmt.Printf("\n%s Saved as %q in %s (id %s)\n", colorGreen("✓"), cfg.Network, cfg.RecordsFile, book.ID)
	}
	return saveErr
}

func saveRecord(records *bridge.Records, book *bridge.AddressBook, path string) error {
	if err := records.Put(book); err != nil {
		return fmt.Errorf("deployed but not recorded: %w", err)
	}
	if err := records.Save(path); err != nil {
		return fmt.Errorf("deployed but not recorded: %w", err)
	}
	return nil
}

// printAddresses prints the role table. hasCode, when set, adds a CODE column.
func printAddresses(d *bridge.Deployment, hasCode map[bridge.Role]bool) error {
	w := newTable()
	if hasCode != nil {
		printTableHeader(w, "ROLE", "LAYER", "CONTRACT", "ADDRESS", "CODE")
	} else {
		printTableHeader(w, "ROLE", "LAYER", "CONTRACT", "ADDRESS")
	}
	for _, role := range bridge.Roles {
		c := d.Contract(role)
		if hasCode != nil {
			mark := colorGreen("✓")
			if !hasCode[role] {
				mark = colorRed("✗")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", role, c.Layer(), c.Name(), c.Address().Hex(), mark)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", role, c.Layer(), c.Name(), c.Address().Hex())
	}
	return w.Flush()
}
