// Package config loads this module's runtime configuration: a viper
// instance seeded with defaults, bound to environment variables under
// a single prefix, and optionally overlaid with a YAML config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/dwn-project/dwn-core/logging"
)

const (
	DefaultEnvPrefix  = "DWN_CORE"
	DefaultConfigName = "dwn-core.config"
	DefaultConfigType = "yml"
	DefaultConfigPath = "/etc/dwn-core"

	DefaultListenAddress = "0.0.0.0:9090"

	DefaultStoreProvider = "sqlite"
	DefaultSQLiteDSN     = "dwn-core.sqlite3"

	DefaultTrustGatePolicyFilePath = DefaultConfigPath + "/trustgate_policies.csv"

	DefaultGrantSweepInterval = time.Hour

	DefaultMetricsEnabled = false
	DefaultMetricsAddress = "0.0.0.0:9091"
)

var logger = logging.Logger("config")

// LoggingConfig controls this module's structured logging verbosity.
type LoggingConfig struct {
	Verbose bool `mapstructure:"verbose"`
}

// StoreConfig selects and configures the persistent message store.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig configures the sqlstore reference implementation.
type SQLiteConfig struct {
	DSN string `mapstructure:"dsn"`
}

// AuthnConfig configures DID resolution for the authenticator (C3).
type AuthnConfig struct {
	// DIDKeyOnly restricts resolution to did:key, skipping any network
	// DID method. Suitable for tests and air-gapped deployments.
	DIDKeyOnly bool `mapstructure:"did_key_only"`
}

// TrustGateConfig configures the coarse trust-domain gate.
type TrustGateConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	PolicyFilePath      string `mapstructure:"policy_file_path"`
}

// GrantSweepConfig configures the periodic permission-grant eviction
// sweep (the dateExpires lifecycle).
type GrantSweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Config is this module's complete runtime configuration.
type Config struct {
	ListenAddress string `mapstructure:"listen_address"`
	Tenant        string `mapstructure:"tenant"`

	Logging    LoggingConfig    `mapstructure:"logging"`
	Store      StoreConfig      `mapstructure:"store"`
	Authn      AuthnConfig      `mapstructure:"authn"`
	TrustGate  TrustGateConfig  `mapstructure:"trustgate"`
	GrantSweep GrantSweepConfig `mapstructure:"grantsweep"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

//nolint:maintidx
func LoadConfig() (*Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType(DefaultConfigType)
	v.AddConfigPath(DefaultConfigPath)

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fileNotFoundError := viper.ConfigFileNotFoundError{}
		if errors.As(err, &fileNotFoundError) {
			logger.Info("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	//
	// API configuration
	//
	_ = v.BindEnv("listen_address")
	v.SetDefault("listen_address", DefaultListenAddress)

	_ = v.BindEnv("tenant")
	v.SetDefault("tenant", "")

	//
	// Logging configuration
	//
	_ = v.BindEnv("logging.verbose")
	v.SetDefault("logging.verbose", false)

	//
	// Store configuration
	//
	_ = v.BindEnv("store.provider")
	v.SetDefault("store.provider", DefaultStoreProvider)

	_ = v.BindEnv("store.sqlite.dsn")
	v.SetDefault("store.sqlite.dsn", DefaultSQLiteDSN)

	//
	// Authn configuration
	//
	_ = v.BindEnv("authn.did_key_only")
	v.SetDefault("authn.did_key_only", false)

	//
	// Trust gate configuration
	//
	_ = v.BindEnv("trustgate.enabled")
	v.SetDefault("trustgate.enabled", true)

	_ = v.BindEnv("trustgate.policy_file_path")
	v.SetDefault("trustgate.policy_file_path", "")

	//
	// Grant sweep configuration
	//
	_ = v.BindEnv("grantsweep.enabled")
	v.SetDefault("grantsweep.enabled", true)

	_ = v.BindEnv("grantsweep.interval")
	v.SetDefault("grantsweep.interval", DefaultGrantSweepInterval)

	//
	// Metrics configuration
	//
	_ = v.BindEnv("metrics.enabled")
	v.SetDefault("metrics.enabled", DefaultMetricsEnabled)

	_ = v.BindEnv("metrics.address")
	v.SetDefault("metrics.address", DefaultMetricsAddress)

	decodeHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}
