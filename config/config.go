// Package config handles keychain runtime configuration.
//
// Configuration is split into two categories: chain parameters (chain id,
// endpoint list) that must match the network the keychain talks to, and
// local settings (data directory, timeouts, logging).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds keychain runtime configuration.
type Config struct {
	// Core
	Network NetworkType `envconfig:"KEYCHAIN_NETWORK"`
	DataDir string      `envconfig:"KEYCHAIN_DATADIR"`

	// Chain RPC
	RPC RPCConfig

	// Vault encryption
	Vault VaultConfig

	// HTTP transport (daemon only)
	Listen ListenConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds chain RPC settings.
type RPCConfig struct {
	// Endpoints is the ordered failover list. The first entry is the
	// initial "current" endpoint.
	Endpoints []string `envconfig:"KEYCHAIN_RPC_ENDPOINTS"`

	// ChainID is the 32-byte hex chain id mixed into signing digests.
	ChainID string `envconfig:"KEYCHAIN_CHAIN_ID"`

	Timeout time.Duration `envconfig:"KEYCHAIN_RPC_TIMEOUT"`

	// Retries is the per-call retry count before surfacing failure.
	Retries int `envconfig:"KEYCHAIN_RPC_RETRIES"`

	// RetryDelay is the linear backoff unit between retries.
	RetryDelay time.Duration `envconfig:"KEYCHAIN_RPC_RETRY_DELAY"`
}

// VaultConfig holds Argon2id parameters for the vault cipher.
type VaultConfig struct {
	Memory      uint32 `envconfig:"KEYCHAIN_KDF_MEMORY"`      // KiB
	Iterations  uint32 `envconfig:"KEYCHAIN_KDF_ITERATIONS"`
	Parallelism uint8  `envconfig:"KEYCHAIN_KDF_PARALLELISM"`
}

// ListenConfig holds the daemon's local HTTP transport settings.
type ListenConfig struct {
	Addr string `envconfig:"KEYCHAIN_LISTEN_ADDR"`
	Port int    `envconfig:"KEYCHAIN_LISTEN_PORT"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `envconfig:"KEYCHAIN_LOG_LEVEL"`
	JSON  bool   `envconfig:"KEYCHAIN_LOG_JSON"`
	File  string `envconfig:"KEYCHAIN_LOG_FILE"`
}

// ListenAddr returns the host:port string for the daemon listener.
func (c ListenConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

// VaultDir returns the directory holding vault storage:
// <datadir>/<network>/vault
func (c *Config) VaultDir() string {
	return filepath.Join(c.DataDir, string(c.Network), "vault")
}

// ApplyEnv overlays KEYCHAIN_* environment variables onto the config.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process("", c); err != nil {
		return fmt.Errorf("apply env config: %w", err)
	}
	return nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Network != Mainnet && c.Network != Testnet {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	if len(c.RPC.Endpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	if len(c.RPC.ChainID) != 64 {
		return fmt.Errorf("chain id must be 32-byte hex, got %d chars", len(c.RPC.ChainID))
	}
	if c.RPC.Retries < 1 {
		return fmt.Errorf("rpc retries must be >= 1")
	}
	if c.Vault.Iterations == 0 || c.Vault.Memory == 0 || c.Vault.Parallelism == 0 {
		return fmt.Errorf("vault KDF parameters must be non-zero")
	}
	return nil
}

// DefaultDataDir returns the platform-specific default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".etta-keychain"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "EttaKeychain")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "EttaKeychain")
		}
		return filepath.Join(home, "EttaKeychain")
	default:
		return filepath.Join(home, ".etta-keychain")
	}
}
