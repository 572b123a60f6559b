package keys

// KeySlot is one role's entry in a KeySet: either an owned secret (WIF
// private key plus its derived public key) or a delegated reference to
// another locally stored account whose authority is used instead.
// The two forms are mutually exclusive.
type KeySlot struct {
	PrivateKey    string `json:"private_key,omitempty"`
	PublicKey     string `json:"public_key,omitempty"`
	DelegatedFrom string `json:"delegated_from,omitempty"`
}

// Owned creates a slot holding a real secret.
func Owned(wif, pub string) *KeySlot {
	return &KeySlot{PrivateKey: wif, PublicKey: pub}
}

// Delegated creates a slot referencing another account's authority.
func Delegated(account string) *KeySlot {
	return &KeySlot{DelegatedFrom: account}
}

// IsDelegated reports whether the slot is a delegated reference.
func (s *KeySlot) IsDelegated() bool {
	return s != nil && s.DelegatedFrom != ""
}

// IsOwned reports whether the slot holds a real secret.
func (s *KeySlot) IsOwned() bool {
	return s != nil && s.PrivateKey != ""
}

// KeySet holds up to four optional role slots for a stored account.
type KeySet struct {
	Owner   *KeySlot `json:"owner,omitempty"`
	Active  *KeySlot `json:"active,omitempty"`
	Posting *KeySlot `json:"posting,omitempty"`
	Memo    *KeySlot `json:"memo,omitempty"`
}

// Slot returns the slot for a role, or nil if unset.
func (k *KeySet) Slot(role Role) *KeySlot {
	switch role {
	case RoleOwner:
		return k.Owner
	case RoleActive:
		return k.Active
	case RolePosting:
		return k.Posting
	case RoleMemo:
		return k.Memo
	default:
		return nil
	}
}

// SetSlot assigns the slot for a role.
func (k *KeySet) SetSlot(role Role, slot *KeySlot) {
	switch role {
	case RoleOwner:
		k.Owner = slot
	case RoleActive:
		k.Active = slot
	case RolePosting:
		k.Posting = slot
	case RoleMemo:
		k.Memo = slot
	}
}

// Merge overlays the non-nil slots of partial onto k (shallow per-role
// overwrite, last write wins per role).
func (k *KeySet) Merge(partial KeySet) {
	for _, role := range AllRoles() {
		if slot := partial.Slot(role); slot != nil {
			k.SetSlot(role, slot)
		}
	}
}

// IsEmpty reports whether no slot is populated.
func (k *KeySet) IsEmpty() bool {
	return k.Owner == nil && k.Active == nil && k.Posting == nil && k.Memo == nil
}

// Roles lists the populated roles in precedence order.
func (k *KeySet) Roles() []Role {
	var roles []Role
	for _, role := range AllRoles() {
		if k.Slot(role) != nil {
			roles = append(roles, role)
		}
	}
	return roles
}
