// Package keyservice derives, validates and classifies account keys
// against on-chain authorities. It holds no state; everything operates on
// values passed in.
package keyservice

import (
	"crypto/sha256"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// GetPublicKeyFromPrivateKeyString parses a WIF private key and derives
// its public key string. Malformed input yields "", false, never an error.
func GetPublicKeyFromPrivateKeyString(priv string) (string, bool) {
	key, err := keys.ParseWIF(priv)
	if err != nil {
		return "", false
	}
	return key.PublicKey().String(), true
}

// ValidWIF reports whether s is a well-formed WIF private key. Format
// only; no ownership claim.
func ValidWIF(s string) bool {
	return keys.ValidWIF(s)
}

// deriveRoleKey implements the login KDF: the secp256k1 scalar is
// SHA-256(accountName + role + password).
func deriveRoleKey(username string, role keys.Role, password string) (*keys.PrivateKey, error) {
	seed := sha256.Sum256([]byte(username + role.String() + password))
	return keys.PrivateKeyFromBytes(seed[:])
}

// DeriveKeys derives posting/active/memo keypairs from the master
// password and keeps each role's key only when the chain vouches for it:
// weight>0 in the matching authority, or equality with the account's memo
// key. A nil result is the wrong-password signal, not an exception.
func DeriveKeys(username, password string, acct *chainclient.Account) *keys.KeySet {
	if acct == nil {
		return nil
	}

	var ks keys.KeySet
	for _, role := range []keys.Role{keys.RolePosting, keys.RoleActive, keys.RoleMemo} {
		key, err := deriveRoleKey(username, role, password)
		if err != nil {
			continue
		}
		pub := key.PublicKey().String()
		if !roleMatches(role, pub, acct) {
			continue
		}
		ks.SetSlot(role, keys.Owned(key.WIF(), pub))
	}

	if ks.IsEmpty() {
		return nil
	}
	return &ks
}

// roleMatches reports whether pub carries authority for role on acct.
func roleMatches(role keys.Role, pub string, acct *chainclient.Account) bool {
	switch role {
	case keys.RoleMemo:
		return pub == acct.MemoKey
	case keys.RolePosting:
		return acct.Posting.PubKeyWeight(pub) > 0
	case keys.RoleActive:
		return acct.Active.PubKeyWeight(pub) > 0
	case keys.RoleOwner:
		return acct.Owner.PubKeyWeight(pub) > 0
	}
	return false
}

// GetKeyType classifies a private key by matching its derived public key
// against the account's authorities. Memo wins over posting over active
// over owner when a key serves several roles. ok is false for WIF-invalid
// or unmatched keys.
func GetKeyType(priv string, acct *chainclient.Account) (keys.Role, bool) {
	key, err := keys.ParseWIF(priv)
	if err != nil || acct == nil {
		return 0, false
	}
	pub := key.PublicKey().String()
	for _, role := range keys.AllRoles() {
		if roleMatches(role, pub, acct) {
			return role, true
		}
	}
	return 0, false
}

// GetKeysFromWIF classifies a WIF key and returns the partial KeySet for
// its role. ok is false when the key matches no authority.
func GetKeysFromWIF(wif string, acct *chainclient.Account) (keys.KeySet, bool) {
	role, ok := GetKeyType(wif, acct)
	if !ok {
		return keys.KeySet{}, false
	}
	key, err := keys.ParseWIF(wif)
	if err != nil {
		return keys.KeySet{}, false
	}
	var ks keys.KeySet
	ks.SetSlot(role, keys.Owned(key.WIF(), key.PublicKey().String()))
	return ks, true
}

// GetPubkeyWeight returns the key_auths weight the authority assigns to
// pubkey, or 0.
func GetPubkeyWeight(pubkey string, auth *keys.Authority) uint16 {
	if auth == nil {
		return 0
	}
	return auth.PubKeyWeight(pubkey)
}

// HasRequiredAuthority reports whether pubkey's weight meets
// requiredWeight under the authority.
func HasRequiredAuthority(pubkey string, requiredWeight uint16, auth *keys.Authority) bool {
	return GetPubkeyWeight(pubkey, auth) >= requiredWeight
}

// Key is a classified private key: canonical role plus the raw value.
type Key struct {
	Type  keys.Role
	Value string
}

// CreateKeyObject normalizes a heterogeneous role tag and pairs it with
// the private key. An unrecognized tag is a programming error and is the
// only failure mode.
func CreateKeyObject(priv, roleTag string) (Key, error) {
	role, err := keys.ParseRole(roleTag)
	if err != nil {
		return Key{}, fmt.Errorf("create key object: %w", err)
	}
	return Key{Type: role, Value: priv}, nil
}
