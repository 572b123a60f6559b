// Package vault implements encrypted persistence of accounts and their
// keys. The whole account set lives in one ciphertext blob keyed by the
// vault password; the active-account pointer is stored unencrypted next to
// it so a UI can show the active name without unlocking.
package vault

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"

	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/storage"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Storage keys.
var (
	keyVault  = []byte("vault")
	keyActive = []byte("active_account")
)

// vaultFile is the plaintext layout inside the encrypted blob.
type vaultFile struct {
	Version       int             `json:"version"`
	Accounts      []StoredAccount `json:"accounts"`
	IntegrityHash string          `json:"integrity_hash,omitempty"`
}

// StoredAccount is one account held in the vault.
type StoredAccount struct {
	Name     string      `json:"name"`
	Keys     keys.KeySet `json:"keys"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata records how and when an account entered the vault.
type Metadata struct {
	ImportMethod string     `json:"import_method"`
	ImportedAt   time.Time  `json:"imported_at"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
}

// Store manages the encrypted vault blob and the active-account pointer.
// All mutations are serialized behind one mutex: each write is a full
// read/decrypt, modify, re-encrypt/write cycle and would race otherwise.
type Store struct {
	mu     sync.Mutex
	db     storage.DB
	params Params
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a vault store over the given database.
func New(db storage.DB, params Params) *Store {
	return &Store{
		db:     db,
		params: params,
		logger: klog.Vault,
		now:    time.Now,
	}
}

// load decrypts the vault blob. ok is false when the blob is missing or
// the password is wrong; err is reserved for storage failures.
func (s *Store) load(vaultPw string) (*vaultFile, bool, error) {
	raw, err := s.db.Get(keyVault)
	if errors.Is(err, storage.ErrNotFound) {
		return &vaultFile{Version: 1}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read vault: %w", err)
	}

	plaintext, err := decrypt(raw, []byte(vaultPw))
	if err != nil {
		// Wrong password and corrupted blob are indistinguishable here;
		// both surface as "no accounts", never as an exception.
		return nil, false, nil
	}

	var vf vaultFile
	if err := json.Unmarshal(plaintext, &vf); err != nil {
		return nil, false, nil
	}
	return &vf, true, nil
}

// write re-encrypts and persists the vault blob, refreshing the
// integrity hash.
func (s *Store) write(vf *vaultFile, vaultPw string) error {
	vf.Version = 1
	vf.IntegrityHash = accountsHash(vf.Accounts)

	plaintext, err := json.Marshal(vf)
	if err != nil {
		return fmt.Errorf("marshal vault: %w", err)
	}
	ciphertext, err := encrypt(plaintext, []byte(vaultPw), s.params)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}
	if err := s.db.Put(keyVault, ciphertext); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

// accountsHash computes the BLAKE3 content hash over the canonical
// accounts JSON.
func accountsHash(accounts []StoredAccount) string {
	data, err := json.Marshal(accounts)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveAccount upserts an account. New entries get ImportedAt=now; the
// first account in an empty vault becomes the active account.
func (s *Store) SaveAccount(name string, ks keys.KeySet, vaultPw, importMethod string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, _, err := s.load(vaultPw)
	if err != nil {
		return err
	}
	// A nil file means a blob exists but did not decrypt: writing would
	// destroy the stored accounts under a wrong password.
	if vf == nil {
		return errs.Auth("invalid vault password", nil)
	}

	updated := false
	for i := range vf.Accounts {
		if vf.Accounts[i].Name == name {
			vf.Accounts[i].Keys.Merge(ks)
			vf.Accounts[i].Metadata.ImportMethod = importMethod
			updated = true
			break
		}
	}
	if !updated {
		vf.Accounts = append(vf.Accounts, StoredAccount{
			Name: name,
			Keys: ks,
			Metadata: Metadata{
				ImportMethod: importMethod,
				ImportedAt:   s.now().UTC(),
			},
		})
	}

	if err := s.write(vf, vaultPw); err != nil {
		return err
	}

	// First account auto-activates.
	if len(vf.Accounts) == 1 {
		if err := s.db.Put(keyActive, []byte(name)); err != nil {
			return fmt.Errorf("set active account: %w", err)
		}
	}

	s.logger.Info().Str("account", name).Str("method", importMethod).Bool("updated", updated).Msg("account saved")
	return nil
}

// GetAccount returns the named account, or nil when the account does not
// exist or the password is wrong.
func (s *Store) GetAccount(name, vaultPw string) (*StoredAccount, error) {
	vf, ok, err := s.load(vaultPw)
	if err != nil || !ok {
		return nil, err
	}
	for i := range vf.Accounts {
		if vf.Accounts[i].Name == name {
			acct := vf.Accounts[i]
			return &acct, nil
		}
	}
	return nil, nil
}

// GetAllAccounts returns every stored account. Missing blob or wrong
// password yields an empty slice, never an error.
func (s *Store) GetAllAccounts(vaultPw string) ([]StoredAccount, error) {
	vf, ok, err := s.load(vaultPw)
	if err != nil || !ok {
		return nil, err
	}
	return vf.Accounts, nil
}

// AccountNames returns the stored account names in vault order.
func (s *Store) AccountNames(vaultPw string) ([]string, error) {
	accounts, err := s.GetAllAccounts(vaultPw)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(accounts))
	for i, a := range accounts {
		names[i] = a.Name
	}
	return names, nil
}

// DeleteAccount removes an account. If it was active, the pointer moves
// to the first remaining account or is cleared.
func (s *Store) DeleteAccount(name, vaultPw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, ok, err := s.load(vaultPw)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	idx := -1
	for i := range vf.Accounts {
		if vf.Accounts[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	vf.Accounts = append(vf.Accounts[:idx], vf.Accounts[idx+1:]...)

	if err := s.write(vf, vaultPw); err != nil {
		return err
	}

	// Never leave the active pointer dangling.
	active, err := s.activeName()
	if err != nil {
		return err
	}
	if active == name {
		if len(vf.Accounts) > 0 {
			if err := s.db.Put(keyActive, []byte(vf.Accounts[0].Name)); err != nil {
				return fmt.Errorf("reassign active account: %w", err)
			}
		} else if err := s.db.Delete(keyActive); err != nil {
			return fmt.Errorf("clear active account: %w", err)
		}
	}

	s.logger.Info().Str("account", name).Msg("account deleted")
	return nil
}

// UpdateAccountKeys merges a partial KeySet into an existing account
// (shallow per-role overwrite). Unknown accounts are a no-op.
func (s *Store) UpdateAccountKeys(name string, partial keys.KeySet, vaultPw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, ok, err := s.load(vaultPw)
	if err != nil || !ok {
		return err
	}
	for i := range vf.Accounts {
		if vf.Accounts[i].Name == name {
			vf.Accounts[i].Keys.Merge(partial)
			return s.write(vf, vaultPw)
		}
	}
	return nil
}

// SetActiveAccount points the active pointer at name. When the vault
// password is supplied, the account's LastUsed metadata is touched too.
func (s *Store) SetActiveAccount(name, vaultPw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Put(keyActive, []byte(name)); err != nil {
		return fmt.Errorf("set active account: %w", err)
	}

	if vaultPw == "" {
		return nil
	}
	vf, ok, err := s.load(vaultPw)
	if err != nil || !ok {
		return err
	}
	for i := range vf.Accounts {
		if vf.Accounts[i].Name == name {
			now := s.now().UTC()
			vf.Accounts[i].Metadata.LastUsed = &now
			return s.write(vf, vaultPw)
		}
	}
	return nil
}

// GetActiveAccount returns the active account name, or "" when unset.
func (s *Store) GetActiveAccount() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeName()
}

func (s *Store) activeName() (string, error) {
	raw, err := s.db.Get(keyActive)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read active account: %w", err)
	}
	return string(raw), nil
}

// ImportBulkAccounts upserts a batch of accounts in one
// decrypt/re-encrypt cycle.
func (s *Store) ImportBulkAccounts(accounts []StoredAccount, vaultPw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, _, err := s.load(vaultPw)
	if err != nil {
		return err
	}
	if vf == nil {
		return errs.Auth("invalid vault password", nil)
	}
	wasEmpty := len(vf.Accounts) == 0

	for _, incoming := range accounts {
		merged := false
		for i := range vf.Accounts {
			if vf.Accounts[i].Name == incoming.Name {
				vf.Accounts[i].Keys.Merge(incoming.Keys)
				merged = true
				break
			}
		}
		if !merged {
			if incoming.Metadata.ImportedAt.IsZero() {
				incoming.Metadata.ImportedAt = s.now().UTC()
			}
			vf.Accounts = append(vf.Accounts, incoming)
		}
	}

	if err := s.write(vf, vaultPw); err != nil {
		return err
	}
	// Only a previously empty vault gets its active pointer set here; a
	// merge into existing accounts must not move it.
	if wasEmpty && len(vf.Accounts) > 0 {
		if err := s.db.Put(keyActive, []byte(vf.Accounts[0].Name)); err != nil {
			return fmt.Errorf("set active account: %w", err)
		}
	}
	return nil
}

// CheckPassword reports whether the password opens the vault blob. An
// absent blob accepts any password since there is nothing to verify
// against yet.
func (s *Store) CheckPassword(vaultPw string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	has, err := s.db.Has(keyVault)
	if err != nil {
		return false, fmt.Errorf("read vault: %w", err)
	}
	if !has {
		return true, nil
	}
	_, ok, err := s.load(vaultPw)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ValidateIntegrity recomputes the vault content hash and compares it to
// the stored one. A mismatch signals tamper or corruption and returns
// false rather than an error.
func (s *Store) ValidateIntegrity(vaultPw string) (bool, error) {
	vf, ok, err := s.load(vaultPw)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if vf.IntegrityHash == "" {
		// Legacy blob without a hash: nothing to compare against.
		return true, nil
	}
	return vf.IntegrityHash == accountsHash(vf.Accounts), nil
}
