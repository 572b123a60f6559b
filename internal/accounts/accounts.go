// Package accounts orchestrates account imports and lifecycle: it joins
// the chain client, key service and vault store into the flows a user
// actually runs.
package accounts

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	"github.com/ettaverse/etta-keychain-sub001/internal/keyservice"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Orchestrator drives account import and lifecycle flows.
type Orchestrator struct {
	vault  *vault.Store
	chain  *chainclient.Client
	logger zerolog.Logger
}

// New builds an orchestrator over the vault store and chain client.
func New(v *vault.Store, chain *chainclient.Client) *Orchestrator {
	return &Orchestrator{vault: v, chain: chain, logger: klog.Accounts}
}

// fetchAccount loads an on-chain account, distinguishing "does not exist"
// from transport failure.
func (o *Orchestrator) fetchAccount(username string) (*chainclient.Account, error) {
	acct, err := o.chain.GetAccount(username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errs.Validation(fmt.Sprintf("account %q does not exist on chain", username), nil)
	}
	return acct, nil
}

// looksLikePublicKey catches the common paste mistake of importing a
// public key where a password or private key belongs.
func looksLikePublicKey(s string) bool {
	return strings.HasPrefix(s, keys.MainnetPrefix) || strings.HasPrefix(s, keys.TestnetPrefix)
}

// ImportAccountWithMasterPassword derives role keys from the master
// password, keeps the ones the chain vouches for, and stores the account.
func (o *Orchestrator) ImportAccountWithMasterPassword(username, password, vaultPw string) error {
	if username == "" || password == "" {
		return errs.Validation("username and master password are required", nil)
	}
	if looksLikePublicKey(password) {
		return errs.Validation("the master password looks like a public key; public keys cannot be imported", nil)
	}

	acct, err := o.fetchAccount(username)
	if err != nil {
		return err
	}

	ks := keyservice.DeriveKeys(username, password, acct)
	if ks == nil {
		return errs.Auth("derived keys do not match any authority of the account", nil)
	}

	if err := o.vault.SaveAccount(username, *ks, vaultPw, "master_password"); err != nil {
		return err
	}
	o.logger.Info().Str("account", username).Strs("roles", roleNames(ks.Roles())).Msg("account imported with master password")
	return nil
}

// ImportAccountWithWIF classifies a single WIF key against the account's
// authorities and stores the matching role.
func (o *Orchestrator) ImportAccountWithWIF(username, wif, vaultPw string) error {
	if username == "" || wif == "" {
		return errs.Validation("username and private key are required", nil)
	}
	if looksLikePublicKey(wif) {
		return errs.Validation("the value looks like a public key; only private keys can be imported", nil)
	}
	if !keyservice.ValidWIF(wif) {
		return errs.Validation("the private key is not a valid WIF", nil)
	}

	acct, err := o.fetchAccount(username)
	if err != nil {
		return err
	}

	ks, ok := keyservice.GetKeysFromWIF(wif, acct)
	if !ok {
		return errs.Auth("the key does not match any authority of the account", nil)
	}

	if err := o.vault.SaveAccount(username, ks, vaultPw, "wif"); err != nil {
		return err
	}
	o.logger.Info().Str("account", username).Strs("roles", roleNames(ks.Roles())).Msg("account imported with wif")
	return nil
}

// ImportAccountWithMultipleKeys classifies several WIF keys in one pass.
// Every key must match an authority; one mismatch fails the whole import.
func (o *Orchestrator) ImportAccountWithMultipleKeys(username string, wifs []string, vaultPw string) error {
	if username == "" || len(wifs) == 0 {
		return errs.Validation("username and at least one private key are required", nil)
	}

	acct, err := o.fetchAccount(username)
	if err != nil {
		return err
	}

	var merged keys.KeySet
	for _, wif := range wifs {
		if !keyservice.ValidWIF(wif) {
			return errs.Validation("one of the private keys is not a valid WIF", nil)
		}
		ks, ok := keyservice.GetKeysFromWIF(wif, acct)
		if !ok {
			return errs.Auth("one of the keys does not match any authority of the account", nil)
		}
		merged.Merge(ks)
	}

	if err := o.vault.SaveAccount(username, merged, vaultPw, "multiple_keys"); err != nil {
		return err
	}
	o.logger.Info().Str("account", username).Int("keys", len(wifs)).Msg("account imported with multiple keys")
	return nil
}

// AddAuthorizedAccount links an account whose authority is delegated to
// one already in the vault: delegate must appear in owner's posting or
// active account_auths. No secret is stored, only the reference.
func (o *Orchestrator) AddAuthorizedAccount(owner, delegate, vaultPw string) error {
	if owner == "" || delegate == "" {
		return errs.Validation("owner and delegate account names are required", nil)
	}

	ownerAcct, err := o.fetchAccount(owner)
	if err != nil {
		return err
	}
	if _, err := o.fetchAccount(delegate); err != nil {
		return err
	}

	var ks keys.KeySet
	if _, ok := ownerAcct.Posting.HasAccountAuth(delegate); ok {
		ks.Posting = keys.Delegated(delegate)
	}
	if _, ok := ownerAcct.Active.HasAccountAuth(delegate); ok {
		ks.Active = keys.Delegated(delegate)
	}
	if ks.IsEmpty() {
		return errs.Authority(
			fmt.Sprintf("%q holds no posting or active authority over %q", delegate, owner), nil)
	}

	if err := o.vault.SaveAccount(owner, ks, vaultPw, "authorized_account"); err != nil {
		return err
	}
	o.logger.Info().Str("owner", owner).Str("delegate", delegate).Msg("authorized account linked")
	return nil
}

// ValidateMasterPassword re-runs the derivation without touching storage.
func (o *Orchestrator) ValidateMasterPassword(username, password string) (bool, error) {
	acct, err := o.chain.GetAccount(username)
	if err != nil {
		return false, err
	}
	return keyservice.DeriveKeys(username, password, acct) != nil, nil
}

// ActiveAccount joins locally stored keys with fresh resource credits.
type ActiveAccount struct {
	Name     string
	Keys     keys.KeySet
	Metadata vault.Metadata
	RC       *chainclient.RCAccount
}

// GetActiveAccount returns the active account joined with its RC state.
// Any chain-side failure degrades to nil so a transient outage never
// corrupts the local view.
func (o *Orchestrator) GetActiveAccount(vaultPw string) (*ActiveAccount, error) {
	name, err := o.vault.GetActiveAccount()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}
	stored, err := o.vault.GetAccount(name, vaultPw)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	rc, err := o.chain.GetAccountRC(name)
	if err != nil {
		o.logger.Warn().Str("account", name).Err(err).Msg("rc fetch failed, degrading to nil")
		return nil, nil
	}
	return &ActiveAccount{Name: name, Keys: stored.Keys, Metadata: stored.Metadata, RC: rc}, nil
}

// AccountExists reports whether the account is stored in the vault.
func (o *Orchestrator) AccountExists(name, vaultPw string) (bool, error) {
	acct, err := o.vault.GetAccount(name, vaultPw)
	return acct != nil, err
}

// GetAccountMetadata returns the stored metadata, or nil when missing.
func (o *Orchestrator) GetAccountMetadata(name, vaultPw string) (*vault.Metadata, error) {
	acct, err := o.vault.GetAccount(name, vaultPw)
	if err != nil || acct == nil {
		return nil, err
	}
	meta := acct.Metadata
	return &meta, nil
}

// GetAllAccounts is a pass-through to the vault store.
func (o *Orchestrator) GetAllAccounts(vaultPw string) ([]vault.StoredAccount, error) {
	return o.vault.GetAllAccounts(vaultPw)
}

// GetAccount is a pass-through to the vault store.
func (o *Orchestrator) GetAccount(name, vaultPw string) (*vault.StoredAccount, error) {
	return o.vault.GetAccount(name, vaultPw)
}

// DeleteAccount is a pass-through to the vault store.
func (o *Orchestrator) DeleteAccount(name, vaultPw string) error {
	return o.vault.DeleteAccount(name, vaultPw)
}

// SetActiveAccount is a pass-through to the vault store.
func (o *Orchestrator) SetActiveAccount(name, vaultPw string) error {
	return o.vault.SetActiveAccount(name, vaultPw)
}

func roleNames(roles []keys.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.String()
	}
	return out
}
