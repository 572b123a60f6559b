package vault

import (
	"encoding/json"
	"fmt"
)

// backupFile is the exported backup layout. It reuses the vault cipher, so
// a backup is only readable with the vault password it was exported under.
type backupFile struct {
	Version  int             `json:"version"`
	Accounts []StoredAccount `json:"accounts"`
	Active   string          `json:"active_account,omitempty"`
}

// ExportBackup produces an encrypted snapshot of all accounts and the
// active pointer.
func (s *Store) ExportBackup(vaultPw string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vf, ok, err := s.load(vaultPw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("vault is empty or the password is wrong")
	}
	active, err := s.activeName()
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(backupFile{
		Version:  1,
		Accounts: vf.Accounts,
		Active:   active,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	out, err := encrypt(plaintext, []byte(vaultPw), s.params)
	if err != nil {
		return nil, fmt.Errorf("encrypt backup: %w", err)
	}
	s.logger.Info().Int("accounts", len(vf.Accounts)).Msg("backup exported")
	return out, nil
}

// ImportFromBackup merges a backup snapshot into the vault. The backup
// must have been exported under the same vault password.
func (s *Store) ImportFromBackup(data []byte, vaultPw string) (int, error) {
	plaintext, err := decrypt(data, []byte(vaultPw))
	if err != nil {
		return 0, fmt.Errorf("open backup: %w", err)
	}

	var bf backupFile
	if err := json.Unmarshal(plaintext, &bf); err != nil {
		return 0, fmt.Errorf("parse backup: %w", err)
	}
	if bf.Version != 1 {
		return 0, fmt.Errorf("unsupported backup version %d", bf.Version)
	}

	if err := s.ImportBulkAccounts(bf.Accounts, vaultPw); err != nil {
		return 0, err
	}
	if bf.Active != "" {
		if err := s.SetActiveAccount(bf.Active, vaultPw); err != nil {
			return 0, err
		}
	}
	s.logger.Info().Int("accounts", len(bf.Accounts)).Msg("backup imported")
	return len(bf.Accounts), nil
}
