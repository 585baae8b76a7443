package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"gopkg.in/yaml.v3"

	"github.com/brojonat/solsweep/client"
)

// FileEnvVar names the environment variable pointing at an optional YAML
// config file. Keys in the file are the lower-cased environment variable
// names (solana_rpc_node, batch_size, ...). Environment variables win.
const FileEnvVar = "SOLSWEEP_CONFIG"

// Config holds all application configuration.
type Config struct {
	LogLevel string

	// Solana
	SolanaRPCURL     string
	ComputeUnitPrice uint64
	ConfirmTimeout   time.Duration

	// Reclaim
	BatchSize        int
	FleetConcurrency int

	// Relay
	RelayURL            string
	ConnectPollInterval time.Duration
	ConnectTimeout      time.Duration

	// Optional sinks; empty disables them
	DatabaseURL string
	NATSURL     string
	MetricsAddr string

	// Temporal
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
	ScanInterval      time.Duration
}

// Load reads configuration from the optional YAML file and environment
// variables, then validates it. All problems are reported together.
func Load() (*Config, error) {
	l, err := newLoader(os.Getenv(FileEnvVar))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	var errs []error

	cfg.LogLevel = l.getEnvOrDefault("LOG_LEVEL", "info")

	cfg.SolanaRPCURL = l.getEnvOrDefault("SOLANA_RPC_NODE", rpc.MainNetBeta_RPC)
	if cfg.ComputeUnitPrice, err = l.parseUint("COMPUTE_UNIT_PRICE", 1000); err != nil {
		errs = append(errs, err)
	}
	if cfg.ConfirmTimeout, err = l.parseDuration("CONFIRM_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	}

	if cfg.BatchSize, err = l.parseInt("BATCH_SIZE", 10); err != nil {
		errs = append(errs, err)
	}
	if cfg.FleetConcurrency, err = l.parseInt("FLEET_CONCURRENCY", 10); err != nil {
		errs = append(errs, err)
	}

	cfg.RelayURL = l.getEnvOrDefault("RELAY_URL", client.DefaultRelayURL)
	if cfg.ConnectPollInterval, err = l.parseDuration("CONNECT_POLL_INTERVAL", "2s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.ConnectTimeout, err = l.parseDuration("CONNECT_TIMEOUT", "5m"); err != nil {
		errs = append(errs, err)
	}

	cfg.DatabaseURL = l.getEnvOrDefault("DATABASE_URL", "")
	cfg.NATSURL = l.getEnvOrDefault("NATS_URL", "")
	cfg.MetricsAddr = l.getEnvOrDefault("METRICS_ADDR", "")

	cfg.TemporalHost = l.getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = l.getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = l.getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solsweep-scans")
	if cfg.ScanInterval, err = l.parseDuration("SCAN_INTERVAL", "1h"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks value ranges. It does not require the optional sinks.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	if c.RelayURL == "" {
		errs = append(errs, fmt.Errorf("RelayURL is required"))
	}
	if c.BatchSize < 1 || c.BatchSize > 20 {
		errs = append(errs, fmt.Errorf("BatchSize must be between 1 and 20, got %d", c.BatchSize))
	}
	if c.FleetConcurrency < 1 {
		errs = append(errs, fmt.Errorf("FleetConcurrency must be at least 1"))
	}
	if c.ConnectPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConnectPollInterval must be positive"))
	}
	if c.ConnectTimeout < c.ConnectPollInterval {
		errs = append(errs, fmt.Errorf("ConnectTimeout (%v) cannot be shorter than ConnectPollInterval (%v)",
			c.ConnectTimeout, c.ConnectPollInterval))
	}
	if c.ConfirmTimeout < time.Second {
		errs = append(errs, fmt.Errorf("ConfirmTimeout must be at least 1 second"))
	}
	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}
	if c.ScanInterval < time.Minute {
		errs = append(errs, fmt.Errorf("ScanInterval must be at least 1 minute"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// loader resolves keys from the environment, then the config file.
type loader struct {
	file map[string]string
}

func newLoader(path string) (loader, error) {
	l := loader{file: map[string]string{}}
	if path == "" {
		return l, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &l.file); err != nil {
		return l, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return l, nil
}

func (l loader) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return l.file[strings.ToLower(key)]
}

// getEnvOrDefault returns the configured value or a default if not set.
func (l loader) getEnvOrDefault(key, defaultValue string) string {
	if value := l.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (l loader) parseDuration(key, defaultValue string) (time.Duration, error) {
	value := l.getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

func (l loader) parseInt(key string, defaultValue int) (int, error) {
	value := l.lookup(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func (l loader) parseUint(key string, defaultValue uint64) (uint64, error) {
	value := l.lookup(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}
