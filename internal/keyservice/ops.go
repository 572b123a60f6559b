package keyservice

import (
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// opRoles maps a chain operation type to the roles allowed to sign it.
// Order matters: the first role the key actually holds wins.
var opRoles = map[string][]keys.Role{
	"vote":                    {keys.RolePosting},
	"comment":                 {keys.RolePosting},
	"custom_json":             {keys.RolePosting, keys.RoleActive},
	"transfer":                {keys.RoleActive},
	"transfer_to_vesting":     {keys.RoleActive},
	"withdraw_vesting":        {keys.RoleActive},
	"delegate_vesting_shares": {keys.RoleActive},
	"account_create":          {keys.RoleActive},
	"account_update":          {keys.RoleActive},
	"account_witness_vote":    {keys.RoleActive},
	"account_witness_proxy":   {keys.RoleActive},
}

// RolesForOperation returns the roles allowed to sign opType. ok is false
// for operation types outside the table.
func RolesForOperation(opType string) ([]keys.Role, bool) {
	roles, ok := opRoles[opType]
	return roles, ok
}

// ValidateKeyForOperation checks that the private key carries a role the
// operation accepts and that the chain still grants that role weight.
func ValidateKeyForOperation(priv, opType string, acct *chainclient.Account) error {
	allowed, ok := opRoles[opType]
	if !ok {
		return errs.Validation(fmt.Sprintf("unknown operation type %q", opType), nil)
	}

	role, ok := GetKeyType(priv, acct)
	if !ok {
		return errs.Auth("key does not match any authority of the account", nil)
	}

	for _, r := range allowed {
		if r == role {
			return nil
		}
	}
	return errs.Authority(
		fmt.Sprintf("%s key cannot sign a %s operation", role, opType),
		nil,
	)
}
