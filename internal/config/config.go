// Package config provides configuration loading for the bridge deployer.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/Bidon15/daibridge/internal/chain"
)

// EnvPrefix is prepended to every environment variable, e.g. DAIBRIDGE_L1_RPC_URL.
const EnvPrefix = "DAIBRIDGE"

// ErrInvalidConfig is returned by the Validate methods.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	Network              string        `mapstructure:"network"`
	ArtifactsDir         string        `mapstructure:"artifacts_dir"`
	RecordsFile          string        `mapstructure:"records_file"`
	LogLevel             string        `mapstructure:"log_level"`
	DeployTimeout        time.Duration `mapstructure:"deploy_timeout"`
	GasPriceBoostPercent int           `mapstructure:"gas_price_boost_percent"`
	L1                   L1Config      `mapstructure:"l1"`
	L2                   L2Config      `mapstructure:"l2"`
}

// ChainConfig holds the connection and signing settings shared by both layers.
type ChainConfig struct {
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`
	// PrivateKey is hex encoded. Empty selects the first development account,
	// which is refused on production chains.
	PrivateKey string `mapstructure:"private_key"`
	// SignerURL selects a remote eth_signTransaction endpoint instead of PrivateKey.
	SignerURL     string `mapstructure:"signer_url"`
	SignerAPIKey  string `mapstructure:"signer_api_key"`
	SignerAddress string `mapstructure:"signer_address"`
}

// L1Config holds L1 settings and the pre-existing L1 contracts.
type L1Config struct {
	ChainConfig `mapstructure:",squash"`
	Dai         string `mapstructure:"dai"`
	Router      string `mapstructure:"router"`
	Inbox       string `mapstructure:"inbox"`
}

// L2Config holds L2 settings and the pre-existing L2 contracts.
type L2Config struct {
	ChainConfig    `mapstructure:",squash"`
	Router         string `mapstructure:"router"`
	ArbRetryableTx string `mapstructure:"arb_retryable_tx"`
}

// keys lists every setting so that each one can be overridden from the environment.
var keys = []string{
	"network",
	"artifacts_dir",
	"records_file",
	"log_level",
	"deploy_timeout",
	"gas_price_boost_percent",
	"l1.rpc_url",
	"l1.chain_id",
	"l1.private_key",
	"l1.signer_url",
	"l1.signer_api_key",
	"l1.signer_address",
	"l1.dai",
	"l1.router",
	"l1.inbox",
	"l2.rpc_url",
	"l2.chain_id",
	"l2.private_key",
	"l2.signer_url",
	"l2.signer_api_key",
	"l2.signer_address",
	"l2.router",
	"l2.arb_retryable_tx",
}

// Load reads configuration from cfgFile (or bridge.yaml in the search path when
// empty) and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("bridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.daibridge")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Nested keys are only seen by Unmarshal when bound explicitly.
	for _, key := range keys {
		_ = v.BindEnv(key, EnvName(key))
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "default")
	v.SetDefault("artifacts_dir", "./artifacts")
	v.SetDefault("records_file", "./deployments.yaml")
	v.SetDefault("log_level", "info")
	v.SetDefault("deploy_timeout", "10m")
	v.SetDefault("gas_price_boost_percent", chain.DefaultGasPriceBoostPercent)

	// Local Nitro dev node: L1 geth on 8545, L2 sequencer on 8547
	v.SetDefault("l1.rpc_url", "http://localhost:8545")
	v.SetDefault("l1.chain_id", 1337)
	v.SetDefault("l2.rpc_url", "http://localhost:8547")
	v.SetDefault("l2.chain_id", 412346)
	v.SetDefault("l2.arb_retryable_tx", "0x000000000000000000000000000000000000006E")
}

// Validate checks the settings every command needs: logging, the RPC deadline and
// both chain connections.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Network == "" {
		return fmt.Errorf("%w: network is required", ErrInvalidConfig)
	}
	if c.DeployTimeout <= 0 {
		return fmt.Errorf("%w: deploy_timeout must be positive", ErrInvalidConfig)
	}
	if c.GasPriceBoostPercent < 0 {
		return fmt.Errorf("%w: gas_price_boost_percent must not be negative", ErrInvalidConfig)
	}
	if err := c.L1.ChainConfig.validate("l1"); err != nil {
		return err
	}
	return c.L2.ChainConfig.validate("l2")
}

// ValidateDeploy additionally checks the dependency addresses a deployment needs.
func (c *Config) ValidateDeploy() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("%w: artifacts_dir is required", ErrInvalidConfig)
	}
	for key, value := range map[string]string{
		"l1.dai":              c.L1.Dai,
		"l1.router":           c.L1.Router,
		"l1.inbox":            c.L1.Inbox,
		"l2.router":           c.L2.Router,
		"l2.arb_retryable_tx": c.L2.ArbRetryableTx,
	} {
		if err := validateAddress(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (c ChainConfig) validate(layer string) error {
	if c.RPCURL == "" {
		return fmt.Errorf("%w: %s.rpc_url is required", ErrInvalidConfig, layer)
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("%w: %s.chain_id must be positive", ErrInvalidConfig, layer)
	}
	if c.SignerURL != "" {
		if c.PrivateKey != "" {
			return fmt.Errorf("%w: %s.private_key and %s.signer_url are mutually exclusive", ErrInvalidConfig, layer, layer)
		}
		return validateAddress(layer+".signer_address", c.SignerAddress)
	}
	if c.PrivateKey == "" || chain.IsDevKey(c.PrivateKey) {
		if name, ok := chain.ProductionChainName(c.ChainID); ok {
			return fmt.Errorf("%w: %s uses a development key on %s (chain_id=%d)",
				ErrInvalidConfig, layer, name, c.ChainID)
		}
	}
	return nil
}

func validateAddress(key, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, key)
	}
	if !common.IsHexAddress(value) {
		return fmt.Errorf("%w: %s is not an address: %q", ErrInvalidConfig, key, value)
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, level)
	}
}

// Redacted returns a copy safe to print, with private keys masked.
func (c Config) Redacted() Config {
	c.L1.PrivateKey = redact(c.L1.PrivateKey)
	c.L2.PrivateKey = redact(c.L2.PrivateKey)
	c.L1.SignerAPIKey = redact(c.L1.SignerAPIKey)
	c.L2.SignerAPIKey = redact(c.L2.SignerAPIKey)
	return c
}

func redact(key string) string {
	switch {
	case key == "":
		return ""
	case chain.IsDevKey(key):
		return "<dev key>"
	default:
		return "********"
	}
}
