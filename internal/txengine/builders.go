package txengine

import (
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// One-operation builders. Each assembles exactly one chain operation and
// delegates to SendOperation.

// BroadcastCustomJson broadcasts a custom_json payload. The signing role
// selects between required_auths (active) and required_posting_auths.
func (e *Engine) BroadcastCustomJson(id, jsonPayload, account string, role keys.Role, keyValue string, confirm bool) *Result {
	op := &tx.CustomJSON{ID: id, JSON: jsonPayload}
	if role == keys.RoleActive {
		op.RequiredAuths = []string{account}
	} else {
		op.RequiredPostingAuths = []string{account}
	}
	return e.SendOperation([]tx.Operation{op}, keyValue, confirm, nil)
}

// Transfer moves liquid funds, composing the "amount currency" string
// with the currency's chain precision.
func (e *Engine) Transfer(from, to, amount, currency, memo, keyValue string) *Result {
	formatted, err := tx.FormatAsset(amount, currency)
	if err != nil {
		return failure(nil, "%v", err)
	}
	op := &tx.Transfer{From: from, To: to, Amount: formatted, Memo: memo}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// Vote casts a vote with the given weight.
func (e *Engine) Vote(voter, author, permlink string, weight int16, keyValue string) *Result {
	op := &tx.Vote{Voter: voter, Author: author, Permlink: permlink, Weight: weight}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// Post publishes a top-level post or a reply.
func (e *Engine) Post(op *tx.Comment, keyValue string) *Result {
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// DelegateVestingShares delegates vesting shares to another account.
func (e *Engine) DelegateVestingShares(delegator, delegatee, vestingShares, keyValue string) *Result {
	op := &tx.DelegateVestingShares{Delegator: delegator, Delegatee: delegatee, VestingShares: vestingShares}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// TransferToVesting powers liquid funds up into vesting shares.
func (e *Engine) TransferToVesting(from, to, amount, keyValue string) *Result {
	op := &tx.TransferToVesting{From: from, To: to, Amount: amount}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// WithdrawVesting starts a power-down.
func (e *Engine) WithdrawVesting(account, vestingShares, keyValue string) *Result {
	op := &tx.WithdrawVesting{Account: account, VestingShares: vestingShares}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// CreateAccount registers a new account with full authorities.
func (e *Engine) CreateAccount(op *tx.AccountCreate, keyValue string) *Result {
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// UpdateAccount changes an account's authorities and/or memo key.
func (e *Engine) UpdateAccount(op *tx.AccountUpdate, keyValue string) *Result {
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// WitnessVote approves or unapproves a witness.
func (e *Engine) WitnessVote(account, witness string, approve bool, keyValue string) *Result {
	op := &tx.AccountWitnessVote{Account: account, Witness: witness, Approve: approve}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}

// SetWitnessProxy sets or clears a witness-vote proxy.
func (e *Engine) SetWitnessProxy(account, proxy, keyValue string) *Result {
	op := &tx.AccountWitnessProxy{Account: account, Proxy: proxy}
	return e.SendOperation([]tx.Operation{op}, keyValue, false, nil)
}
