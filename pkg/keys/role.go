// Package keys implements key material handling for the keychain: roles,
// key slots, WIF and public-key codecs, and on-chain authority math.
package keys

import (
	"fmt"
	"strings"
)

// Role identifies one of the four chain permission levels.
type Role int

const (
	RoleOwner Role = iota
	RoleActive
	RolePosting
	RoleMemo
)

// String returns the canonical lower-case role name.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleActive:
		return "active"
	case RolePosting:
		return "posting"
	case RoleMemo:
		return "memo"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole normalizes the heterogeneous role-tag spellings seen at the
// system boundary ("Posting", "POSTING", "posting", ...) into one canonical
// Role. An unrecognized tag is a programming error, not a user error.
func ParseRole(tag string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "owner":
		return RoleOwner, nil
	case "active":
		return RoleActive, nil
	case "posting":
		return RolePosting, nil
	case "memo":
		return RoleMemo, nil
	default:
		return 0, fmt.Errorf("unrecognized key role tag %q", tag)
	}
}

// AllRoles lists every role in classification precedence order:
// memo > posting > active > owner.
func AllRoles() []Role {
	return []Role{RoleMemo, RolePosting, RoleActive, RoleOwner}
}
