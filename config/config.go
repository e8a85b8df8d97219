// Package config holds the runtime configuration of the optiswap tooling.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/optiswap/optiswap/circuit"
	"github.com/optiswap/optiswap/log"
)

// EnvPrefix is prepended to environment overrides, e.g.
// OPTISWAP_LOG_LEVEL or OPTISWAP_EXCHANGE_TIMEOUT_INCREMENT.
const EnvPrefix = "OPTISWAP"

// Configuration keys.
const (
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyCircuitVersion   = "circuit.version"
	KeyMaxNumBlocks     = "circuit.max-blocks"
	KeyTimeoutIncrement = "exchange.timeout-increment"
	KeyMetrics          = "metrics.enabled"
	KeyMetricsAddr      = "metrics.addr"
)

// Config holds all configuration for the optiswap core tooling.
type Config struct {
	// LogLevel controls log verbosity (debug, info, warn, error).
	LogLevel string

	// LogFormat selects the log encoding (json, text).
	LogFormat string

	// CircuitVersion is the gate codec version the evaluator accepts.
	CircuitVersion uint8

	// TimeoutIncrement is added to the deadline on every advancing call.
	TimeoutIncrement time.Duration

	// MaxNumBlocks bounds the circuit size accepted at exchange creation.
	MaxNumBlocks uint64

	// Metrics enables the Prometheus endpoint.
	Metrics bool

	// MetricsAddr is the listen address of the Prometheus endpoint.
	MetricsAddr string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:         "info",
		LogFormat:        "json",
		CircuitVersion:   circuit.CircuitVersion,
		TimeoutIncrement: time.Hour,
		MaxNumBlocks:     1 << 20,
		Metrics:          false,
		MetricsAddr:      "127.0.0.1:9464",
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.CircuitVersion != circuit.CircuitVersion {
		return fmt.Errorf("config: unsupported circuit version %d", c.CircuitVersion)
	}
	if c.TimeoutIncrement < time.Second {
		return fmt.Errorf("config: timeout increment %s below one second", c.TimeoutIncrement)
	}
	if c.MaxNumBlocks == 0 {
		return errors.New("config: max blocks must be positive")
	}
	if c.MaxNumBlocks > circuit.MaxNumBlocks {
		return fmt.Errorf("config: max blocks %d exceeds %d", c.MaxNumBlocks, circuit.MaxNumBlocks)
	}
	if c.Metrics && c.MetricsAddr == "" {
		return errors.New("config: metrics enabled without an address")
	}
	return nil
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before calling FromViper.
func NewViper() *viper.Viper {
	d := DefaultConfig()
	v := viper.New()
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyCircuitVersion, d.CircuitVersion)
	v.SetDefault(KeyMaxNumBlocks, d.MaxNumBlocks)
	v.SetDefault(KeyTimeoutIncrement, d.TimeoutIncrement)
	v.SetDefault(KeyMetrics, d.Metrics)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file at path (toml, yaml or json), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper materializes and validates a Config from v.
func FromViper(v *viper.Viper) (Config, error) {
	version := v.GetUint(KeyCircuitVersion)
	if version > 0xff {
		return Config{}, fmt.Errorf("config: circuit version %d out of range", version)
	}
	cfg := Config{
		LogLevel:         strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:        strings.ToLower(v.GetString(KeyLogFormat)),
		CircuitVersion:   uint8(version),
		TimeoutIncrement: v.GetDuration(KeyTimeoutIncrement),
		MaxNumBlocks:     v.GetUint64(KeyMaxNumBlocks),
		Metrics:          v.GetBool(KeyMetrics),
		MetricsAddr:      v.GetString(KeyMetricsAddr),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
