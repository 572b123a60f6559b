package chainclient

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// BroadcastTransaction validates the envelope shape, then submits it with
// bounded retries. If the current endpoint stays unreachable, it rotates
// to the next configured endpoint for one final attempt. A JSON-RPC error
// from a node is a chain rejection and is not retried.
func (c *Client) BroadcastTransaction(env *tx.Envelope) (string, error) {
	if err := env.Validate(); err != nil {
		return "", errs.Validation(err.Error(), nil)
	}

	endpoint := c.selector.Current()
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		id, err := c.broadcastOnce(endpoint, env)
		if err == nil {
			return id, nil
		}
		if rejection, ok := errRejection(err); ok {
			return "", rejection
		}
		lastErr = err
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Err(err).
			Msg("broadcast failed")
		if attempt < c.retries {
			c.sleep(c.retryDelay * time.Duration(attempt))
		}
	}

	// Failover: one more attempt on the next endpoint in the rotation.
	failover := c.selector.Next()
	c.logger.Info().Str("endpoint", failover).Msg("broadcast failing over")
	id, err := c.broadcastOnce(failover, env)
	if err == nil {
		return id, nil
	}
	if rejection, ok := errRejection(err); ok {
		return "", rejection
	}
	return "", errs.Network(
		fmt.Sprintf("broadcast failed after %d attempts and failover to %s", c.retries, failover),
		lastErr,
	)
}

func (c *Client) broadcastOnce(endpoint string, env *tx.Envelope) (string, error) {
	var raw json.RawMessage
	if err := c.call(endpoint, "condenser_api.broadcast_transaction", []interface{}{env}, &raw); err != nil {
		return "", err
	}
	return extractTxID(raw, env), nil
}

func errRejection(err error) (error, bool) {
	if rpcErr, ok := err.(*RPCError); ok {
		return errs.ChainRejection(rpcErr.Message, rpcErr), true
	}
	return nil, false
}

// extractTxID pulls a transaction id from the heterogeneous reply shapes
// nodes produce, synthesizing a content hash or timestamp id when the node
// omits one.
func extractTxID(raw json.RawMessage, env *tx.Envelope) string {
	if len(raw) > 0 {
		var obj struct {
			ID    string `json:"id"`
			TxID  string `json:"tx_id"`
			TrxID string `json:"trx_id"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil {
			switch {
			case obj.ID != "":
				return obj.ID
			case obj.TxID != "":
				return obj.TxID
			case obj.TrxID != "":
				return obj.TrxID
			}
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}

	if serialized, err := env.Serialize(); err == nil {
		sum := blake3.Sum256(serialized)
		return hex.EncodeToString(sum[:20])
	}
	return fmt.Sprintf("tx-%d", time.Now().UnixNano())
}

// GetTransaction looks a broadcast transaction up by id. Returns ok=false
// when the node does not know it yet.
func (c *Client) GetTransaction(txID string) (json.RawMessage, bool, error) {
	endpoint := c.selector.Current()
	var raw json.RawMessage
	err := c.call(endpoint, "condenser_api.get_transaction", []interface{}{txID}, &raw)
	if err != nil {
		if _, ok := err.(*RPCError); ok {
			// Unknown transactions come back as rpc errors while the tx is
			// still propagating.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get transaction: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, false, nil
	}
	return raw, true, nil
}
