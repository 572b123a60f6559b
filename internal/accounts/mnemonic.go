package accounts

import (
	"fmt"

	bip32 "github.com/tyler-smith/go-bip32"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// slip48Purpose is the SLIP-0048 purpose index for graphene-style chains.
const slip48Purpose = 13

// slip48RoleIndex maps a key role to its SLIP-0048 role index.
var slip48RoleIndex = map[keys.Role]uint32{
	keys.RoleOwner:   0,
	keys.RoleActive:  1,
	keys.RoleMemo:    3,
	keys.RolePosting: 4,
}

// deriveMnemonicKey derives the role key at m/13'/role'/0' (all hardened)
// from a BIP-39 seed.
func deriveMnemonicKey(seed []byte, role keys.Role) (*keys.PrivateKey, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	path := []uint32{slip48Purpose, slip48RoleIndex[role], 0}
	node := master
	for _, idx := range path {
		node, err = node.NewChildKey(bip32.FirstHardenedChild + idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d': %w", idx, err)
		}
	}
	return keys.PrivateKeyFromBytes(node.Key)
}

// ImportAccountWithMnemonic derives SLIP-0048 role keys from a BIP-39
// mnemonic and keeps the ones the chain vouches for, exactly like the
// master-password flow.
func (o *Orchestrator) ImportAccountWithMnemonic(username, mnemonic, vaultPw string) error {
	if username == "" || mnemonic == "" {
		return errs.Validation("username and mnemonic are required", nil)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return errs.Validation("the mnemonic is not a valid BIP-39 phrase", nil)
	}

	acct, err := o.fetchAccount(username)
	if err != nil {
		return err
	}

	seed := bip39.NewSeed(mnemonic, "")

	var ks keys.KeySet
	for role := range slip48RoleIndex {
		key, err := deriveMnemonicKey(seed, role)
		if err != nil {
			continue
		}
		pub := key.PublicKey().String()
		slot := keys.Owned(key.WIF(), pub)

		switch role {
		case keys.RoleOwner:
			if acct.Owner.PubKeyWeight(pub) > 0 {
				ks.Owner = slot
			}
		case keys.RoleActive:
			if acct.Active.PubKeyWeight(pub) > 0 {
				ks.Active = slot
			}
		case keys.RolePosting:
			if acct.Posting.PubKeyWeight(pub) > 0 {
				ks.Posting = slot
			}
		case keys.RoleMemo:
			if pub == acct.MemoKey {
				ks.Memo = slot
			}
		}
	}

	if ks.IsEmpty() {
		return errs.Auth("no key derived from the mnemonic matches an authority of the account", nil)
	}

	if err := o.vault.SaveAccount(username, ks, vaultPw, "mnemonic"); err != nil {
		return err
	}
	o.logger.Info().Str("account", username).Strs("roles", roleNames(ks.Roles())).Msg("account imported with mnemonic")
	return nil
}
