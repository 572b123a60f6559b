package dispatch

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
	"github.com/ettaverse/etta-keychain-sub001/pkg/memo"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// Per-type handlers. Each validates field presence, resolves the target
// account and role key, then delegates to the orchestrator or engine.

func (d *Dispatcher) handleDecode(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Message == "" {
		return d.fail(requestID, "message is required")
	}
	if !memo.IsEncrypted(p.Message) {
		return d.fail(requestID, "message is not an encrypted memo")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleMemo)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	priv, err := keys.ParseWIF(wif)
	if err != nil {
		return d.fail(requestID, "stored memo key is invalid: %v", err)
	}
	defer priv.Zero()

	plain, err := memo.Decode(priv, p.Message)
	if err != nil {
		return d.fail(requestID, "decode memo: %v", err)
	}
	return d.ok(requestID, plain)
}

func (d *Dispatcher) handleEncode(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		Receiver string `json:"receiver"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Receiver == "" || p.Message == "" {
		return d.fail(requestID, "receiver and message are required")
	}
	if !memo.IsEncrypted(p.Message) {
		return d.fail(requestID, "message must start with # to be encoded")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleMemo)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	receiver, err := d.chain.GetAccount(p.Receiver)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	if receiver == nil {
		return d.fail(requestID, "receiver account %q does not exist on chain", p.Receiver)
	}
	toPub, err := keys.ParsePublicKey(receiver.MemoKey)
	if err != nil {
		return d.fail(requestID, "receiver memo key: %v", err)
	}

	priv, err := keys.ParseWIF(wif)
	if err != nil {
		return d.fail(requestID, "stored memo key is invalid: %v", err)
	}
	defer priv.Zero()

	encoded, err := memo.Encode(priv, toPub, p.Message)
	if err != nil {
		return d.fail(requestID, "encode memo: %v", err)
	}
	return d.ok(requestID, encoded)
}

func (d *Dispatcher) handleSignBuffer(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		Message  string `json:"message"`
		Method   string `json:"method"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Message == "" || p.Method == "" {
		return d.fail(requestID, "message and method are required")
	}
	role, err := keys.ParseRole(p.Method)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, role)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	digest := sha256.Sum256([]byte(p.Message))
	sig, err := d.engine.SignDigest(digest[:], wif)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	return d.ok(requestID, sig)
}

func (d *Dispatcher) handleSignTx(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string          `json:"username"`
		Tx       json.RawMessage `json:"tx"`
		Method   string          `json:"method"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if len(p.Tx) == 0 {
		return d.fail(requestID, "tx is required")
	}
	method := p.Method
	if method == "" {
		method = "posting"
	}
	role, err := keys.ParseRole(method)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	var env tx.Envelope
	if err := json.Unmarshal(p.Tx, &env); err != nil {
		return d.fail(requestID, "malformed transaction: %v", err)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, role)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	signed, err := d.engine.SignTransaction(&env, wif)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	return d.ok(requestID, signed)
}

func (d *Dispatcher) handleBroadcast(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username   string          `json:"username"`
		Operations json.RawMessage `json:"operations"`
		Method     string          `json:"method"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if len(p.Operations) == 0 {
		return d.fail(requestID, "operations are required")
	}
	method := p.Method
	if method == "" {
		method = "posting"
	}
	role, err := keys.ParseRole(method)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	var ops tx.Operations
	if err := json.Unmarshal(p.Operations, &ops); err != nil {
		return d.fail(requestID, "malformed operations: %v", err)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, role)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID, d.engine.SendOperation(ops, wif, false, nil))
}

func (d *Dispatcher) handleAddAccount(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		Keys     struct {
			Owner   string `json:"owner"`
			Active  string `json:"active"`
			Posting string `json:"posting"`
			Memo    string `json:"memo"`
		} `json:"keys"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Username == "" {
		return d.fail(requestID, "username is required")
	}
	var wifs []string
	for _, wif := range []string{p.Keys.Owner, p.Keys.Active, p.Keys.Posting, p.Keys.Memo} {
		if wif != "" {
			wifs = append(wifs, wif)
		}
	}
	if len(wifs) == 0 {
		return d.fail(requestID, "at least one key is required")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	if err := d.orch.ImportAccountWithMultipleKeys(p.Username, wifs, pw); err != nil {
		return d.fail(requestID, "%v", err)
	}
	return d.ok(requestID, map[string]interface{}{"account": p.Username})
}

func (d *Dispatcher) handleCustomJSON(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string          `json:"username"`
		ID       string          `json:"id"`
		JSON     json.RawMessage `json:"json"`
		Method   string          `json:"method"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.ID == "" || len(p.JSON) == 0 {
		return d.fail(requestID, "id and json are required")
	}
	method := p.Method
	if method == "" {
		method = "posting"
	}
	role, err := keys.ParseRole(method)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	if role != keys.RolePosting && role != keys.RoleActive {
		return d.fail(requestID, "custom_json requires the posting or active role")
	}

	// The payload may arrive as a JSON value or a pre-encoded string.
	var payload string
	if err := json.Unmarshal(p.JSON, &payload); err != nil {
		payload = string(p.JSON)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, usedRole, err := d.keyForRoles(stored, pw, role)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.BroadcastCustomJson(p.ID, payload, stored.Name, usedRole, wif, false))
}

func (d *Dispatcher) handleTransfer(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		To       string `json:"to"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		Memo     string `json:"memo"`
		Enforce  bool   `json:"enforce"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.To == "" || p.Amount == "" || p.Currency == "" {
		return d.fail(requestID, "to, amount and currency are required")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, p.Enforce)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.Transfer(stored.Name, p.To, p.Amount, p.Currency, p.Memo, wif))
}

func (d *Dispatcher) handleVote(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string          `json:"username"`
		Author   string          `json:"author"`
		Permlink string          `json:"permlink"`
		Weight   json.RawMessage `json:"weight"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Author == "" || p.Permlink == "" || len(p.Weight) == 0 {
		return d.fail(requestID, "author, permlink and weight are required")
	}

	// Weight arrives as a number or numeric string; both must land in
	// the chain's vote range before any chain call happens.
	var weight int64
	if err := json.Unmarshal(p.Weight, &weight); err != nil {
		var s string
		if err := json.Unmarshal(p.Weight, &s); err != nil {
			return d.fail(requestID, "weight must be a number")
		}
		if _, err := fmt.Sscanf(s, "%d", &weight); err != nil {
			return d.fail(requestID, "weight must be a number")
		}
	}
	if weight < -10000 || weight > 10000 {
		return d.fail(requestID, "Vote weight must be between -10000 and 10000")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RolePosting)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.Vote(stored.Name, p.Author, p.Permlink, int16(weight), wif))
}

func (d *Dispatcher) handlePost(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username       string `json:"username"`
		Title          string `json:"title"`
		Body           string `json:"body"`
		Permlink       string `json:"permlink"`
		ParentUsername string `json:"parent_username"`
		ParentPermlink string `json:"parent_perm"`
		JSONMetadata   string `json:"json_metadata"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Body == "" || p.Permlink == "" || p.ParentPermlink == "" {
		return d.fail(requestID, "body, permlink and parent_perm are required")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RolePosting)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	op := &tx.Comment{
		ParentAuthor:   p.ParentUsername,
		ParentPermlink: p.ParentPermlink,
		Author:         stored.Name,
		Permlink:       p.Permlink,
		Title:          p.Title,
		Body:           p.Body,
		JSONMetadata:   p.JSONMetadata,
	}
	return d.broadcastResult(requestID, d.engine.Post(op, wif))
}

func (d *Dispatcher) handleDelegation(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username  string `json:"username"`
		Delegatee string `json:"delegatee"`
		Amount    string `json:"amount"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Delegatee == "" || p.Amount == "" {
		return d.fail(requestID, "delegatee and amount are required")
	}
	shares, err := tx.FormatAsset(p.Amount, "VESTS")
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.DelegateVestingShares(stored.Name, p.Delegatee, shares, wif))
}

func (d *Dispatcher) handlePowerUp(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username  string `json:"username"`
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Recipient == "" || p.Amount == "" {
		return d.fail(requestID, "recipient and amount are required")
	}
	currency := p.Currency
	if currency == "" {
		currency = "STEEM"
	}
	amount, err := tx.FormatAsset(p.Amount, currency)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.TransferToVesting(stored.Name, p.Recipient, amount, wif))
}

func (d *Dispatcher) handlePowerDown(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		Amount   string `json:"hive_power"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Amount == "" {
		return d.fail(requestID, "hive_power is required")
	}
	shares, err := tx.FormatAsset(p.Amount, "VESTS")
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.WithdrawVesting(stored.Name, shares, wif))
}

func (d *Dispatcher) handleWitnessVote(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string `json:"username"`
		Witness  string `json:"witness"`
		Vote     *bool  `json:"vote"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.Witness == "" || p.Vote == nil {
		return d.fail(requestID, "witness and vote are required")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.WitnessVote(stored.Name, p.Witness, *p.Vote, wif))
}

func (d *Dispatcher) handleProxy(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username string  `json:"username"`
		Proxy    *string `json:"proxy"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	// An empty proxy string is valid: it clears the proxy.
	if p.Proxy == nil {
		return d.fail(requestID, "proxy is required")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.broadcastResult(requestID,
		d.engine.SetWitnessProxy(stored.Name, *p.Proxy, wif))
}

func (d *Dispatcher) handleCreateAccount(requestID json.RawMessage, raw []byte) Response {
	var p struct {
		Username   string          `json:"username"`
		NewAccount string          `json:"new_account"`
		Owner      *keys.Authority `json:"owner"`
		Active     *keys.Authority `json:"active"`
		Posting    *keys.Authority `json:"posting"`
		MemoKey    string          `json:"memo"`
		Fee        string          `json:"fee"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.NewAccount == "" || p.Owner == nil || p.Active == nil || p.Posting == nil || p.MemoKey == "" || p.Fee == "" {
		return d.fail(requestID, "new_account, owner, active, posting, memo and fee are required")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	op := &tx.AccountCreate{
		Fee:            p.Fee,
		Creator:        stored.Name,
		NewAccountName: p.NewAccount,
		Owner:          *p.Owner,
		Active:         *p.Active,
		Posting:        *p.Posting,
		MemoKey:        p.MemoKey,
		JSONMetadata:   "{}",
	}
	return d.broadcastResult(requestID, d.engine.CreateAccount(op, wif))
}

// authorityParams is shared by the four authority-mutation requests.
type authorityParams struct {
	Username           string          `json:"username"`
	AuthorizedUsername string          `json:"authorizedUsername"`
	AuthorizedKey      string          `json:"authorizedKey"`
	Role               string          `json:"role"`
	Weight             json.RawMessage `json:"weight"`
}

func (p *authorityParams) weight() (uint16, error) {
	var w uint16
	if err := json.Unmarshal(p.Weight, &w); err != nil {
		return 0, fmt.Errorf("weight must be a positive number")
	}
	return w, nil
}

// mutateAuthority fetches the live authority for the role, applies the
// mutation, and broadcasts an account_update signed with the active key.
// Multisig authorities are detected and refused: co-signing is not
// supported.
func (d *Dispatcher) mutateAuthority(requestID json.RawMessage, p authorityParams, mutate func(*keys.Authority) error) Response {
	role, err := keys.ParseRole(p.Role)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	if role != keys.RolePosting && role != keys.RoleActive {
		return d.fail(requestID, "authority changes are limited to the posting and active roles")
	}

	pw, err := d.unlocked()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	stored, err := d.resolveAccount(p.Username, pw, false)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	wif, _, err := d.keyForRoles(stored, pw, keys.RoleActive)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	onchain, err := d.chain.GetAccount(stored.Name)
	if err != nil {
		return d.fail(requestID, "%v", err)
	}
	if onchain == nil {
		return d.fail(requestID, "account %q does not exist on chain", stored.Name)
	}

	var auth keys.Authority
	if role == keys.RolePosting {
		auth = onchain.Posting
	} else {
		auth = onchain.Active
	}
	if auth.IsMultisig() {
		return d.fail(requestID, "%v",
			errs.Authority("the account authority is multisig; co-signing is not supported", nil))
	}
	if err := mutate(&auth); err != nil {
		return d.fail(requestID, "%v", err)
	}

	op := &tx.AccountUpdate{
		Account:      stored.Name,
		MemoKey:      onchain.MemoKey,
		JSONMetadata: onchain.JSONMetadata,
	}
	if role == keys.RolePosting {
		op.Posting = &auth
	} else {
		op.Active = &auth
	}
	return d.broadcastResult(requestID, d.engine.UpdateAccount(op, wif))
}

func (d *Dispatcher) handleAddAccountAuthority(requestID json.RawMessage, raw []byte) Response {
	var p authorityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.AuthorizedUsername == "" || p.Role == "" || len(p.Weight) == 0 {
		return d.fail(requestID, "authorizedUsername, role and weight are required")
	}
	weight, err := p.weight()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.mutateAuthority(requestID, p, func(auth *keys.Authority) error {
		for i := range auth.AccountAuths {
			if auth.AccountAuths[i].Account == p.AuthorizedUsername {
				auth.AccountAuths[i].Weight = weight
				return nil
			}
		}
		auth.AccountAuths = append(auth.AccountAuths, keys.AccountAuth{
			Account: p.AuthorizedUsername,
			Weight:  weight,
		})
		return nil
	})
}

func (d *Dispatcher) handleRemoveAccountAuthority(requestID json.RawMessage, raw []byte) Response {
	var p authorityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.AuthorizedUsername == "" || p.Role == "" {
		return d.fail(requestID, "authorizedUsername and role are required")
	}

	return d.mutateAuthority(requestID, p, func(auth *keys.Authority) error {
		for i := range auth.AccountAuths {
			if auth.AccountAuths[i].Account == p.AuthorizedUsername {
				auth.AccountAuths = append(auth.AccountAuths[:i], auth.AccountAuths[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("account %q is not authorized", p.AuthorizedUsername)
	})
}

func (d *Dispatcher) handleAddKeyAuthority(requestID json.RawMessage, raw []byte) Response {
	var p authorityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.AuthorizedKey == "" || p.Role == "" || len(p.Weight) == 0 {
		return d.fail(requestID, "authorizedKey, role and weight are required")
	}
	if _, err := keys.ParsePublicKey(p.AuthorizedKey); err != nil {
		return d.fail(requestID, "authorizedKey: %v", err)
	}
	weight, err := p.weight()
	if err != nil {
		return d.fail(requestID, "%v", err)
	}

	return d.mutateAuthority(requestID, p, func(auth *keys.Authority) error {
		for i := range auth.KeyAuths {
			if auth.KeyAuths[i].PubKey == p.AuthorizedKey {
				auth.KeyAuths[i].Weight = weight
				return nil
			}
		}
		auth.KeyAuths = append(auth.KeyAuths, keys.KeyAuth{
			PubKey: p.AuthorizedKey,
			Weight: weight,
		})
		return nil
	})
}

func (d *Dispatcher) handleRemoveKeyAuthority(requestID json.RawMessage, raw []byte) Response {
	var p authorityParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return d.fail(requestID, "malformed request: %v", err)
	}
	if p.AuthorizedKey == "" || p.Role == "" {
		return d.fail(requestID, "authorizedKey and role are required")
	}

	return d.mutateAuthority(requestID, p, func(auth *keys.Authority) error {
		for i := range auth.KeyAuths {
			if auth.KeyAuths[i].PubKey == p.AuthorizedKey {
				auth.KeyAuths = append(auth.KeyAuths[:i], auth.KeyAuths[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("key %q is not authorized", p.AuthorizedKey)
	})
}
