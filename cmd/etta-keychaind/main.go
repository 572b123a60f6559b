// Etta keychain daemon.
//
// Usage:
//
//	etta-keychaind [--network=testnet --datadir=... --listen=...]
//	etta-keychaind --help
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/accounts"
	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/internal/dispatch"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/session"
	"github.com/ettaverse/etta-keychain-sub001/internal/storage"
	"github.com/ettaverse/etta-keychain-sub001/internal/txengine"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

func main() {
	network := flag.String("network", "mainnet", "network to use (mainnet or testnet)")
	dataDir := flag.String("datadir", "", "data directory (default: platform data dir)")
	listen := flag.String("listen", "", "listen address override (host:port)")
	logLevel := flag.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	cfg := config.DefaultMainnet()
	if *network == "testnet" {
		cfg = config.DefaultTestnet()
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *listen != "" {
		host, portStr, err := net.SplitHostPort(*listen)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --listen %q: %v\n", *listen, err)
			os.Exit(1)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --listen port %q\n", portStr)
			os.Exit(1)
		}
		cfg.Listen.Addr = host
		cfg.Listen.Port = port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if cfg.Network == config.Testnet {
		keys.SetAddressPrefix(keys.TestnetPrefix)
	}

	db, err := storage.NewBadger(cfg.VaultDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	chain, err := chainclient.New(cfg.RPC)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store := vault.New(db, vault.ParamsFromConfig(cfg.Vault))
	sess := session.New()
	engine := txengine.New(chain, sess, cfg.RPC.ChainID)
	orch := accounts.New(store, chain)
	dispatcher := dispatch.New(orch, engine, store, chain, sess)

	srv := newServer(cfg, dispatcher, sess, store)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	klog.Info().Str("addr", srv.Addr()).Str("network", string(cfg.Network)).Msg("keychain daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	srv.Stop()
	sess.Clear()
}
