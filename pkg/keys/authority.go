package keys

import "encoding/json"

// Authority is the on-chain structure listing which public keys and
// accounts, with what weights, may authorize operations at one permission
// level. Fetched from the chain, never mutated locally.
type Authority struct {
	WeightThreshold uint32        `json:"weight_threshold"`
	AccountAuths    []AccountAuth `json:"account_auths"`
	KeyAuths        []KeyAuth     `json:"key_auths"`
}

// AccountAuth is a (account name, weight) pair.
type AccountAuth struct {
	Account string
	Weight  uint16
}

// KeyAuth is a (public key, weight) pair.
type KeyAuth struct {
	PubKey string
	Weight uint16
}

// The chain serializes auths as two-element arrays: ["name-or-key", weight].

// UnmarshalJSON implements json.Unmarshaler for the chain's pair encoding.
func (a *AccountAuth) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &a.Account); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &a.Weight)
}

// MarshalJSON implements json.Marshaler for the chain's pair encoding.
func (a AccountAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{a.Account, a.Weight})
}

// UnmarshalJSON implements json.Unmarshaler for the chain's pair encoding.
func (a *KeyAuth) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &a.PubKey); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &a.Weight)
}

// MarshalJSON implements json.Marshaler for the chain's pair encoding.
func (a KeyAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{a.PubKey, a.Weight})
}

// PubKeyWeight returns the weight the authority assigns to pubkey, or 0.
func (a *Authority) PubKeyWeight(pubkey string) uint16 {
	if a == nil {
		return 0
	}
	for _, ka := range a.KeyAuths {
		if ka.PubKey == pubkey {
			return ka.Weight
		}
	}
	return 0
}

// HasAccountAuth reports whether the authority delegates to the named
// account, returning its weight.
func (a *Authority) HasAccountAuth(account string) (uint16, bool) {
	if a == nil {
		return 0, false
	}
	for _, aa := range a.AccountAuths {
		if aa.Account == account {
			return aa.Weight, true
		}
	}
	return 0, false
}

// Satisfies reports whether pubkey alone meets the given weight requirement.
func (a *Authority) Satisfies(pubkey string, requiredWeight uint16) bool {
	return a.PubKeyWeight(pubkey) >= requiredWeight
}

// IsMultisig reports whether a single key auth cannot meet the threshold,
// i.e. signing requires collecting signatures from multiple parties.
func (a *Authority) IsMultisig() bool {
	if a == nil {
		return false
	}
	for _, ka := range a.KeyAuths {
		if uint32(ka.Weight) >= a.WeightThreshold {
			return false
		}
	}
	return len(a.KeyAuths) > 0 || len(a.AccountAuths) > 0
}
