// Package dispatch routes inbound keychain requests to the right
// signing/broadcast path. It performs no cryptography or I/O of its own,
// only validation, routing and response shaping, and it catches every
// internal failure at its boundary.
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ettaverse/etta-keychain-sub001/internal/accounts"
	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/session"
	"github.com/ettaverse/etta-keychain-sub001/internal/txengine"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Dispatcher is the stateless request switchboard.
type Dispatcher struct {
	orch    *accounts.Orchestrator
	engine  *txengine.Engine
	vault   *vault.Store
	chain   *chainclient.Client
	session *session.Store
	logger  zerolog.Logger
}

// New wires a dispatcher over the keychain components.
func New(orch *accounts.Orchestrator, engine *txengine.Engine, v *vault.Store, chain *chainclient.Client, sess *session.Store) *Dispatcher {
	return &Dispatcher{
		orch:    orch,
		engine:  engine,
		vault:   v,
		chain:   chain,
		session: sess,
		logger:  klog.Dispatch,
	}
}

// baseRequest is the envelope every request shares.
type baseRequest struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"request_id"`
}

// Response is the uniform reply shape. RequestID always echoes the
// request, including for malformed and unknown requests.
type Response struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	Result    interface{}     `json:"result,omitempty"`
	RequestID json.RawMessage `json:"request_id"`
}

func (d *Dispatcher) fail(requestID json.RawMessage, format string, args ...interface{}) Response {
	return Response{Success: false, Error: fmt.Sprintf(format, args...), RequestID: requestID}
}

func (d *Dispatcher) ok(requestID json.RawMessage, result interface{}) Response {
	return Response{Success: true, Result: result, RequestID: requestID}
}

// broadcastResult normalizes an engine result into the response shape.
func (d *Dispatcher) broadcastResult(requestID json.RawMessage, res *txengine.Result) Response {
	if !res.Success {
		return d.fail(requestID, "%s", res.Error)
	}
	result := map[string]interface{}{
		"id":    res.TxID,
		"tx_id": res.TxID,
	}
	if res.Confirmed != nil {
		result["confirmed"] = *res.Confirmed
	}
	return d.ok(requestID, result)
}

// Handle routes one raw request and always returns a well-formed
// response. Panics inside handlers are converted to error responses.
func (d *Dispatcher) Handle(raw []byte) (resp Response) {
	var base baseRequest
	// Malformed JSON still yields a response; the request id is simply
	// absent.
	if err := json.Unmarshal(raw, &base); err != nil {
		return d.fail(nil, "malformed request: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("type", base.Type).Interface("panic", r).Msg("handler panicked")
			resp = d.fail(base.RequestID, "internal error: %v", r)
		}
	}()

	if base.Type == "" {
		return d.fail(base.RequestID, "request type is required")
	}

	handler, ok := d.handlers()[base.Type]
	if !ok {
		return d.fail(base.RequestID, "Unknown request type")
	}

	resp = handler(base.RequestID, raw)
	if !resp.Success {
		d.logger.Debug().Str("type", base.Type).Str("error", resp.Error).Msg("request failed")
	}
	return resp
}

type handlerFunc func(requestID json.RawMessage, raw []byte) Response

func (d *Dispatcher) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		"decode":                 d.handleDecode,
		"encode":                 d.handleEncode,
		"signBuffer":             d.handleSignBuffer,
		"signTx":                 d.handleSignTx,
		"broadcast":              d.handleBroadcast,
		"addAccount":             d.handleAddAccount,
		"custom_json":            d.handleCustomJSON,
		"transfer":               d.handleTransfer,
		"vote":                   d.handleVote,
		"post":                   d.handlePost,
		"delegation":             d.handleDelegation,
		"powerUp":                d.handlePowerUp,
		"powerDown":              d.handlePowerDown,
		"witnessVote":            d.handleWitnessVote,
		"proxy":                  d.handleProxy,
		"createAccount":          d.handleCreateAccount,
		"addAccountAuthority":    d.handleAddAccountAuthority,
		"removeAccountAuthority": d.handleRemoveAccountAuthority,
		"addKeyAuthority":        d.handleAddKeyAuthority,
		"removeKeyAuthority":     d.handleRemoveKeyAuthority,
	}
}

// unlocked returns the vault password or an error when the keychain is
// locked.
func (d *Dispatcher) unlocked() (string, error) {
	pw, ok := d.session.Get()
	if !ok {
		return "", errs.Auth("Keychain is locked", nil)
	}
	return pw, nil
}

// resolveAccount picks the target account: the explicit username, or the
// active account unless enforce demands an explicit name.
func (d *Dispatcher) resolveAccount(username, vaultPw string, enforce bool) (*vault.StoredAccount, error) {
	if username == "" {
		if enforce {
			return nil, errs.Validation("username is required for this request", nil)
		}
		active, err := d.vault.GetActiveAccount()
		if err != nil {
			return nil, err
		}
		if active == "" {
			return nil, errs.Auth("no account selected in keychain", nil)
		}
		username = active
	}
	stored, err := d.vault.GetAccount(username, vaultPw)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errs.Auth(fmt.Sprintf("account %q not found in keychain", username), nil)
	}
	return stored, nil
}

// keyForRoles returns the first usable key among the preferred roles.
// Delegated slots resolve through the referenced account's own secret.
func (d *Dispatcher) keyForRoles(stored *vault.StoredAccount, vaultPw string, roles ...keys.Role) (string, keys.Role, error) {
	for _, role := range roles {
		slot := stored.Keys.Slot(role)
		if slot == nil {
			continue
		}
		if slot.IsOwned() {
			return slot.PrivateKey, role, nil
		}
		ref, err := d.vault.GetAccount(slot.DelegatedFrom, vaultPw)
		if err != nil {
			return "", 0, err
		}
		if ref == nil {
			continue
		}
		if refSlot := ref.Keys.Slot(role); refSlot != nil && refSlot.IsOwned() {
			return refSlot.PrivateKey, role, nil
		}
	}
	return "", 0, errs.Auth(
		fmt.Sprintf("no usable key for account %q (roles %v)", stored.Name, roles), nil)
}
