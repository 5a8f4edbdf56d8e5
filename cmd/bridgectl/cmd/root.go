package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Bidon15/daibridge/internal/config"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Global flags
	cfgFile     string
	networkName string
	logLevel    string
	jsonOut     bool

	// Set by loadConfig before any command runs.
	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "Deploy and locate the Dai bridge contracts",
	Long: `bridgectl deploys the Dai bridge (L1Escrow, ArbDai, L2DaiGateway and
L1DaiGateway) to an L1 chain and its Arbitrum L2, and attaches to deployments
that already exist.

Configuration (in order of priority):
  1. Command-line flags (--network, --log-level)
  2. Environment variables (DAIBRIDGE_NETWORK, DAIBRIDGE_L1_RPC_URL, ...)
  3. Config file (bridge.yaml in ., ./config or ~/.daibridge)

Get started:
  $ bridgectl config show       # Inspect the effective configuration
  $ bridgectl deploy            # Deploy a fresh bridge
  $ bridgectl locate --check    # Verify the recorded deployment`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bridgectl version %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is bridge.yaml in ., ./config or ~/.daibridge)")
	rootCmd.PersistentFlags().StringVar(&networkName, "network", "", "deployment record to use (or DAIBRIDGE_NETWORK)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (or DAIBRIDGE_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")

	// Add commands
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration, applies flag overrides and sets up logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if networkName != "" {
		loaded.Network = networkName
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}

	level, err := config.ParseLogLevel(loaded.LogLevel)
	if err != nil {
		return err
	}

	// Logs go to stderr so that --json output on stdout stays parseable.
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	cfg = loaded
	return nil
}
