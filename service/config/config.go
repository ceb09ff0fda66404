package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Solana networks accepted in SOLANA_NETWORK.
const (
	NetworkDevnet  = "devnet"
	NetworkMainnet = "mainnet"
)

// Public RPC endpoints used when SOLANA_RPC_URL is unset.
const (
	DevnetRPCURL  = "https://api.devnet.solana.com"
	MainnetRPCURL = "https://api.mainnet-beta.solana.com"
)

// DefaultRPCURL returns the public endpoint for network, or "" for an
// unknown network.
func DefaultRPCURL(network string) string {
	switch network {
	case NetworkDevnet:
		return DevnetRPCURL
	case NetworkMainnet:
		return MainnetRPCURL
	}
	return ""
}

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration. SolanaRPCURLs may list several endpoints
	// (comma separated in SOLANA_RPC_URL); one is picked per process.
	SolanaRPCURLs       []string
	SolanaNetwork       string
	SolanaCommitment    string
	ConfirmPollInterval time.Duration

	// WalletKeypairPath points at a solana-keygen JSON file. When empty the
	// server cannot submit transfers on its own.
	WalletKeypairPath string

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Temporal configuration. Empty TemporalHost disables durable submissions.
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration. The network picks the default endpoint.
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", NetworkDevnet)
	defaultRPC := DefaultRPCURL(cfg.SolanaNetwork)
	if defaultRPC == "" {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be %q or %q, got %q", NetworkDevnet, NetworkMainnet, cfg.SolanaNetwork))
		defaultRPC = DevnetRPCURL
	}

	cfg.SolanaRPCURLs = splitList(getEnvOrDefault("SOLANA_RPC_URL", defaultRPC))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL must name at least one endpoint"))
	}

	cfg.SolanaCommitment = getEnvOrDefault("SOLANA_COMMITMENT", "confirmed")
	if !validCommitment(cfg.SolanaCommitment) {
		errs = append(errs, fmt.Errorf("SOLANA_COMMITMENT must be processed, confirmed or finalized, got %q", cfg.SolanaCommitment))
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else if pollInterval <= 0 {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL must be positive, got %v", pollInterval))
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	cfg.WalletKeypairPath = os.Getenv("WALLET_KEYPAIR_PATH")

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "memotransfer-submissions")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if DefaultRPCURL(c.SolanaNetwork) == "" {
		errs = append(errs, fmt.Errorf("SolanaNetwork must be devnet or mainnet"))
	}

	if !validCommitment(c.SolanaCommitment) {
		errs = append(errs, fmt.Errorf("SolanaCommitment must be processed, confirmed or finalized"))
	}

	if c.ConfirmPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval must be positive"))
	}

	if c.TemporalHost != "" {
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TemporalNamespace is required when TemporalHost is set"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TemporalTaskQueue is required when TemporalHost is set"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// TemporalEnabled reports whether durable submissions are configured.
func (c *Config) TemporalEnabled() bool {
	return c.TemporalHost != ""
}

// NATSEnabled reports whether events should be published.
func (c *Config) NATSEnabled() bool {
	return c.NATSURL != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validCommitment(c string) bool {
	switch c {
	case "processed", "confirmed", "finalized":
		return true
	}
	return false
}
