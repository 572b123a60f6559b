package chainclient

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/errs"
	klog "github.com/ettaverse/etta-keychain-sub001/internal/log"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// Client reads chain state and broadcasts transactions. Retries are a
// small fixed count with linear backoff; broadcast additionally fails over
// to the next endpoint.
type Client struct {
	selector   *Selector
	http       *http.Client
	retries    int
	retryDelay time.Duration
	logger     zerolog.Logger
	sleep      func(time.Duration)
}

// New builds a client from the RPC configuration.
func New(cfg config.RPCConfig) (*Client, error) {
	sel, err := NewSelector(cfg.Endpoints)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Client{
		selector:   sel,
		http:       &http.Client{Timeout: timeout},
		retries:    retries,
		retryDelay: delay,
		logger:     klog.Chain,
		sleep:      time.Sleep,
	}, nil
}

// Selector exposes the endpoint selector, mainly for status reporting.
func (c *Client) Selector() *Selector {
	return c.selector
}

// callRetry invokes method on the current endpoint, retrying transport
// failures with linear backoff. An RPCError from the node is returned
// immediately; retrying a request the node already rejected is pointless.
func (c *Client) callRetry(method string, params, result interface{}) error {
	endpoint := c.selector.Current()
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		err := c.call(endpoint, method, params, result)
		if err == nil {
			return nil
		}
		if rpcErr, ok := err.(*RPCError); ok {
			return rpcErr
		}
		lastErr = err
		c.logger.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Err(err).
			Msg("rpc call failed")
		if attempt < c.retries {
			c.sleep(c.retryDelay * time.Duration(attempt))
		}
	}
	return errs.Network(fmt.Sprintf("%s failed after %d attempts", method, c.retries), lastErr)
}

// GetAccount fetches one on-chain account. A missing account is nil, not
// an error.
func (c *Client) GetAccount(name string) (*Account, error) {
	var accounts []Account
	if err := c.callRetry("condenser_api.get_accounts", [][]string{{name}}, &accounts); err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

// GetAccountRC fetches resource-credit state. An account without an RC
// record is an error here, unlike GetAccount.
func (c *Client) GetAccountRC(name string) (*RCAccount, error) {
	var result struct {
		RCAccounts []RCAccount `json:"rc_accounts"`
	}
	params := map[string][]string{"accounts": {name}}
	if err := c.callRetry("rc_api.find_rc_accounts", params, &result); err != nil {
		return nil, err
	}
	if len(result.RCAccounts) == 0 {
		return nil, fmt.Errorf("no rc record for account %q", name)
	}
	return &result.RCAccounts[0], nil
}

// GetDynamicGlobalProperties fetches the current chain state.
func (c *Client) GetDynamicGlobalProperties() (*DynamicGlobalProperties, error) {
	var props DynamicGlobalProperties
	if err := c.callRetry("condenser_api.get_dynamic_global_properties", []interface{}{}, &props); err != nil {
		return nil, err
	}
	return &props, nil
}

// GetHeadBlockNumber returns the current head block height.
func (c *Client) GetHeadBlockNumber() (uint32, error) {
	props, err := c.GetDynamicGlobalProperties()
	if err != nil {
		return 0, err
	}
	return props.HeadBlockNumber, nil
}

// GetBlockHeader fetches the header of the given block.
func (c *Client) GetBlockHeader(blockNum uint32) (*BlockHeader, error) {
	var header BlockHeader
	if err := c.callRetry("condenser_api.get_block_header", []interface{}{blockNum}, &header); err != nil {
		return nil, err
	}
	if header.Previous == "" {
		return nil, fmt.Errorf("block %d not found", blockNum)
	}
	return &header, nil
}

// GetRefBlockHeader computes the TaPoS reference from the previous block's
// id, fetched via the block header of blockNum.
func (c *Client) GetRefBlockHeader(blockNum uint32) (tx.RefBlock, error) {
	header, err := c.GetBlockHeader(blockNum)
	if err != nil {
		return tx.RefBlock{}, err
	}
	return tx.RefBlockFrom(blockNum-1, header.Previous)
}

// GetRefBlockData computes the TaPoS reference directly from the head
// block's id. Both this and GetRefBlockHeader share one prefix formula.
func (c *Client) GetRefBlockData(blockNum uint32, headBlockID string) (tx.RefBlock, error) {
	return tx.RefBlockFrom(blockNum, headBlockID)
}
