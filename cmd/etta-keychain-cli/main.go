// etta-keychain-cli manages the local keychain vault: importing accounts,
// listing and selecting them, and exporting encrypted backups. It opens
// the same vault directory the daemon uses, so stop the daemon before
// running vault-mutating commands.
package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/accounts"
	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/storage"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	network := "mainnet"
	dataDir := ""

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--network" && len(args) > 1:
			network = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = args[0][len("--network="):]
			args = args[1:]
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	cfg := config.DefaultMainnet()
	if network == "testnet" {
		cfg = config.DefaultTestnet()
		keys.SetAddressPrefix(keys.TestnetPrefix)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.ApplyEnv(); err != nil {
		fatal("%v", err)
	}

	// The CLI is a quiet tool; only warnings and errors reach the terminal.
	if err := klog.Init("warn", false, ""); err != nil {
		fatal("%v", err)
	}

	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "import":
		cmdImport(cfg, cmdArgs)
	case "list":
		cmdList(cfg)
	case "use":
		cmdUse(cfg, cmdArgs)
	case "delete":
		cmdDelete(cfg, cmdArgs)
	case "authorize":
		cmdAuthorize(cfg, cmdArgs)
	case "export":
		cmdExport(cfg, cmdArgs)
	case "restore":
		cmdRestore(cfg, cmdArgs)
	case "verify":
		cmdVerify(cfg)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: etta-keychain-cli [global flags] <command> [flags]

Global flags:
  --network <net>     mainnet (default) or testnet
  --datadir <path>    Data directory (default: platform data dir)

Commands:
  import <account> --master          Import with the account master password
  import <account> --wif <wif>       Import a single private key (WIF)
  import <account> --mnemonic        Import from a BIP-39 seed phrase
  list                               List stored accounts
  use <account>                      Set the active account
  delete <account>                   Remove an account from the vault
  authorize <owner> <delegate>       Record a posting/active account authority
  export <file>                      Write an encrypted vault backup
  restore <file>                     Merge accounts from a backup file
  verify                             Check vault integrity
`)
}

// openVault opens the on-disk vault the daemon uses.
func openVault(cfg *config.Config) (*vault.Store, storage.DB) {
	db, err := storage.NewBadger(cfg.VaultDir())
	if err != nil {
		fatal("open vault: %v", err)
	}
	return vault.New(db, vault.ParamsFromConfig(cfg.Vault)), db
}

func newOrchestrator(cfg *config.Config, store *vault.Store) *accounts.Orchestrator {
	chain, err := chainclient.New(cfg.RPC)
	if err != nil {
		fatal("%v", err)
	}
	return accounts.New(store, chain)
}

// ── import ──────────────────────────────────────────────────────────────

func cmdImport(cfg *config.Config, args []string) {
	if len(args) < 1 || strings.HasPrefix(args[0], "--") {
		fatal("usage: import <account> [--master | --wif <wif> | --mnemonic]")
	}
	account := args[0]
	args = args[1:]

	mode := ""
	wif := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--master":
			mode = "master"
		case "--mnemonic":
			mode = "mnemonic"
		case "--wif":
			mode = "wif"
			if i+1 < len(args) {
				wif = args[i+1]
				i++
			}
		default:
			fatal("unknown flag %q", args[i])
		}
	}
	if mode == "" {
		fatal("one of --master, --wif or --mnemonic is required")
	}

	store, db := openVault(cfg)
	defer db.Close()
	orch := newOrchestrator(cfg, store)
	vaultPw := promptVaultPassword(store)

	switch mode {
	case "master":
		master, err := readPassword(fmt.Sprintf("Master password for %s: ", account))
		if err != nil {
			fatal("%v", err)
		}
		if err := orch.ImportAccountWithMasterPassword(account, string(master), vaultPw); err != nil {
			fatal("%v", err)
		}
	case "wif":
		if wif == "" {
			raw, err := readPassword("Private key (WIF): ")
			if err != nil {
				fatal("%v", err)
			}
			wif = string(raw)
		}
		if err := orch.ImportAccountWithWIF(account, wif, vaultPw); err != nil {
			fatal("%v", err)
		}
	case "mnemonic":
		raw, err := readPassword("Seed phrase: ")
		if err != nil {
			fatal("%v", err)
		}
		if err := orch.ImportAccountWithMnemonic(account, string(raw), vaultPw); err != nil {
			fatal("%v", err)
		}
	}

	fmt.Printf("Imported %s\n", account)
}

// ── list ────────────────────────────────────────────────────────────────

func cmdList(cfg *config.Config) {
	store, db := openVault(cfg)
	defer db.Close()
	vaultPw := promptVaultPassword(store)

	all, err := store.GetAllAccounts(vaultPw)
	if err != nil {
		fatal("%v", err)
	}
	if len(all) == 0 {
		fmt.Println("No accounts stored")
		return
	}

	active, err := store.GetActiveAccount()
	if err != nil {
		fatal("%v", err)
	}

	for _, acct := range all {
		marker := " "
		if acct.Name == active {
			marker = "*"
		}
		roles := make([]string, 0, 4)
		for _, role := range acct.Keys.Roles() {
			roles = append(roles, role.String())
		}
		fmt.Printf("%s %-20s roles=%s imported=%s (%s)\n",
			marker, acct.Name, strings.Join(roles, ","),
			acct.Metadata.ImportedAt.Format("2006-01-02"),
			acct.Metadata.ImportMethod)
	}
}

// ── use / delete / authorize ────────────────────────────────────────────

func cmdUse(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("usage: use <account>")
	}
	store, db := openVault(cfg)
	defer db.Close()
	vaultPw := promptVaultPassword(store)

	if err := store.SetActiveAccount(args[0], vaultPw); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Active account: %s\n", args[0])
}

func cmdDelete(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("usage: delete <account>")
	}
	store, db := openVault(cfg)
	defer db.Close()
	vaultPw := promptVaultPassword(store)

	if err := store.DeleteAccount(args[0], vaultPw); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Deleted %s\n", args[0])
}

func cmdAuthorize(cfg *config.Config, args []string) {
	if len(args) != 2 {
		fatal("usage: authorize <owner> <delegate>")
	}
	store, db := openVault(cfg)
	defer db.Close()
	orch := newOrchestrator(cfg, store)
	vaultPw := promptVaultPassword(store)

	if err := orch.AddAuthorizedAccount(args[0], args[1], vaultPw); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Recorded authority of %s for %s\n", args[1], args[0])
}

// ── export / restore / verify ───────────────────────────────────────────

func cmdExport(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("usage: export <file>")
	}
	store, db := openVault(cfg)
	defer db.Close()
	vaultPw := promptVaultPassword(store)

	data, err := store.ExportBackup(vaultPw)
	if err != nil {
		fatal("%v", err)
	}
	if err := os.WriteFile(args[0], data, 0600); err != nil {
		fatal("write backup: %v", err)
	}
	fmt.Printf("Backup written to %s\n", args[0])
}

func cmdRestore(cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal("usage: restore <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal("read backup: %v", err)
	}

	store, db := openVault(cfg)
	defer db.Close()
	vaultPw := promptVaultPassword(store)

	n, err := store.ImportFromBackup(data, vaultPw)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Restored %d account(s)\n", n)
}

func cmdVerify(cfg *config.Config) {
	store, db := openVault(cfg)
	defer db.Close()
	vaultPw := promptVaultPassword(store)

	ok, err := store.ValidateIntegrity(vaultPw)
	if err != nil {
		fatal("%v", err)
	}
	if !ok {
		fatal("vault integrity check failed")
	}
	fmt.Println("Vault integrity OK")
}

// ── Password helpers ────────────────────────────────────────────────────

// promptVaultPassword reads the vault password and rejects a wrong one
// up front rather than letting it surface as "no accounts".
func promptVaultPassword(store *vault.Store) string {
	pw, err := readPassword("Vault password: ")
	if err != nil {
		fatal("%v", err)
	}
	valid, err := store.CheckPassword(string(pw))
	if err != nil {
		fatal("%v", err)
	}
	if !valid {
		fatal("invalid vault password")
	}
	return string(pw)
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
