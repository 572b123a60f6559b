package config

import "time"

// Chain constants shared by mainnet and testnet.
const (
	// BlockInterval is the chain's block production interval.
	BlockInterval = 3 * time.Second

	// DefaultExpiry is the default transaction expiration window.
	DefaultExpiry = 60 * time.Second
)

// MainnetChainID is the production chain id. It domain-separates signing
// digests and must match the network the configured endpoints serve.
const MainnetChainID = "beeab0de00000000000000000000000000000000000000000000000000000000"

// TestnetChainID is the public testnet chain id.
const TestnetChainID = "18dcf0a285365fc58b71f18b3d3fec954aa0c141c44e4e5cb4cf777b9eab274e"

// DefaultMainnet returns the default keychain configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Endpoints: []string{
				"https://api.hive.blog",
				"https://api.deathwing.me",
				"https://api.openhive.network",
				"https://anyx.io",
			},
			ChainID:    MainnetChainID,
			Timeout:    10 * time.Second,
			Retries:    3,
			RetryDelay: 500 * time.Millisecond,
		},
		Vault: VaultConfig{
			Memory:      64 * 1024, // 64 MB
			Iterations:  3,
			Parallelism: 4,
		},
		Listen: ListenConfig{
			Addr: "127.0.0.1",
			Port: 8190,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default keychain configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Endpoints = []string{"https://testnet.openhive.network"}
	cfg.RPC.ChainID = TestnetChainID
	cfg.Listen.Port = 8191
	return cfg
}
