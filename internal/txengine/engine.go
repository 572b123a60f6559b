// Package txengine assembles, signs and broadcasts transactions. Every
// failure inside SendOperation is converted to a Result value; nothing
// escapes as an error past this boundary.
package txengine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/internal/session"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// confirmRetries is the fixed confirmation-polling budget.
const confirmRetries = 10

// Engine signs and broadcasts operations against one chain.
type Engine struct {
	chain   *chainclient.Client
	session *session.Store
	chainID string
	logger  zerolog.Logger
	sleep   func(time.Duration)
	now     func() time.Time
}

// New builds an engine. The session store is consulted only to unwrap
// vault-wrapped key values.
func New(chain *chainclient.Client, sess *session.Store, chainID string) *Engine {
	return &Engine{
		chain:   chain,
		session: sess,
		chainID: chainID,
		logger:  klog.Engine,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// Options tunes a single SendOperation call.
type Options struct {
	// Expiry overrides the default transaction lifetime.
	Expiry time.Duration
}

// Result is the uniform outcome of a send. Exactly one of Error or TxID
// is meaningful depending on Success.
type Result struct {
	Success     bool         `json:"success"`
	TxID        string       `json:"tx_id,omitempty"`
	Error       string       `json:"error,omitempty"`
	Confirmed   *bool        `json:"confirmed,omitempty"`
	Transaction *tx.Envelope `json:"transaction,omitempty"`
}

func failure(env *tx.Envelope, format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...), Transaction: env}
}

// resolveKey turns a key value into a usable private key. Values wrapped
// under the vault marker are decrypted with the session's vault password
// first.
func (e *Engine) resolveKey(keyValue string) (*keys.PrivateKey, error) {
	if vault.IsWrappedSecret(keyValue) {
		pw, ok := e.session.Get()
		if !ok {
			return nil, fmt.Errorf("Keychain is locked")
		}
		wif, err := vault.UnwrapSecret(keyValue, pw)
		if err != nil {
			return nil, fmt.Errorf("unwrap signing key: %w", err)
		}
		keyValue = wif
	}
	key, err := keys.ParseWIF(keyValue)
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	return key, nil
}

// SendOperation builds an envelope around ops, signs it with keyValue and
// broadcasts it. With confirm set it additionally polls for on-chain
// presence; a missed confirmation never turns a successful broadcast into
// a failure.
func (e *Engine) SendOperation(ops []tx.Operation, keyValue string, confirm bool, opts *Options) *Result {
	key, err := e.resolveKey(keyValue)
	if err != nil {
		return failure(nil, "%v", err)
	}
	defer key.Zero()

	props, err := e.chain.GetDynamicGlobalProperties()
	if err != nil {
		return failure(nil, "fetch chain state: %v", err)
	}
	ref, err := e.chain.GetRefBlockData(props.HeadBlockNumber, props.HeadBlockID)
	if err != nil {
		return failure(nil, "compute tapos reference: %v", err)
	}

	expiry := config.DefaultExpiry
	if opts != nil && opts.Expiry > 0 {
		expiry = opts.Expiry
	}
	base, err := time.Parse(tx.TimeFormat, props.Time)
	if err != nil {
		base = e.now().UTC()
	}

	env := tx.NewEnvelope(ref, base.Add(expiry), ops...)
	if err := env.Sign(e.chainID, key); err != nil {
		return failure(env, "sign transaction: %v", err)
	}

	txID, err := e.chain.BroadcastTransaction(env)
	if err != nil {
		return failure(env, "%v", err)
	}

	result := &Result{Success: true, TxID: txID, Transaction: env}
	if confirm {
		confirmed := e.WaitForConfirmation(txID, confirmRetries)
		result.Confirmed = &confirmed
	}
	e.logger.Info().Str("tx_id", txID).Int("ops", len(ops)).Msg("operation broadcast")
	return result
}

// SignTransaction signs a caller-assembled envelope without broadcasting
// it. Numeric expirations in the incoming JSON are already normalized by
// the envelope's time codec.
func (e *Engine) SignTransaction(env *tx.Envelope, keyValue string) (*tx.Envelope, error) {
	key, err := e.resolveKey(keyValue)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	if err := env.Sign(e.chainID, key); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return env, nil
}

// SignDigest signs an arbitrary 32-byte digest, for the signBuffer
// request path.
func (e *Engine) SignDigest(digest []byte, keyValue string) (string, error) {
	key, err := e.resolveKey(keyValue)
	if err != nil {
		return "", err
	}
	defer key.Zero()
	sig, err := key.SignCompact(digest)
	if err != nil {
		return "", fmt.Errorf("sign digest: %w", err)
	}
	return fmt.Sprintf("%x", sig), nil
}

// WaitForConfirmation polls for the transaction at the block interval.
// Exhausting the budget returns false; it does not undo the broadcast.
func (e *Engine) WaitForConfirmation(txID string, maxRetries int) bool {
	if maxRetries <= 0 {
		maxRetries = confirmRetries
	}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, found, err := e.chain.GetTransaction(txID)
		if err != nil {
			e.logger.Warn().Str("tx_id", txID).Err(err).Msg("confirmation poll failed")
		} else if found {
			return true
		}
		if attempt < maxRetries {
			e.sleep(config.BlockInterval)
		}
	}
	e.logger.Warn().Str("tx_id", txID).Int("retries", maxRetries).Msg("confirmation budget exhausted")
	return false
}
