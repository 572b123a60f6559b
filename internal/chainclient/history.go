package chainclient

import (
	"fmt"
	"time"

	"github.com/ettaverse/etta-keychain-sub001/config"
)

// historyPageLimit is the node-side page cap for get_account_history.
const historyPageLimit = 1000

// maxScanResults bounds every custom_json scan regardless of caller input.
const maxScanResults = 10000

// GetAccountHistory fetches one page of account history. start = -1 means
// newest first; limit is capped by the node page limit.
func (c *Client) GetAccountHistory(account string, start int64, limit int) ([]HistoryItem, error) {
	if limit <= 0 || limit > historyPageLimit {
		limit = historyPageLimit
	}
	// Nodes reject limit > start+1 when paging backward from a concrete
	// index, so the earliest page shrinks to what is left.
	if start >= 0 && int64(limit) > start+1 {
		limit = int(start + 1)
	}
	var items []HistoryItem
	params := []interface{}{account, start, limit}
	if err := c.callRetry("condenser_api.get_account_history", params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetCustomJsonByAccount scans an account's history newest-first for
// custom_json operations with the given id. A failing page is logged and
// skipped, not fatal to the scan.
func (c *Client) GetCustomJsonByAccount(account, id string, maxResults int) ([]CustomJSONEntry, error) {
	maxResults = clampResults(maxResults)

	var out []CustomJSONEntry
	start := int64(-1)
	for {
		items, err := c.GetAccountHistory(account, start, historyPageLimit)
		if err != nil {
			c.logger.Warn().Str("account", account).Int64("start", start).Err(err).Msg("history page failed, skipping")
			if start < 0 {
				// Cannot determine the next page without the first one.
				return out, nil
			}
			start -= historyPageLimit
			if start < 0 {
				return out, nil
			}
			continue
		}
		if len(items) == 0 {
			return out, nil
		}

		// Pages arrive oldest-first within the page.
		for i := len(items) - 1; i >= 0; i-- {
			entry, ok := customJSONFromEntry(items[i].Entry)
			if !ok || entry.ID != id {
				continue
			}
			out = append(out, entry)
			if len(out) >= maxResults {
				return out, nil
			}
		}

		oldest := items[0].Index
		if oldest == 0 {
			return out, nil
		}
		start = oldest - 1
	}
}

// GetCustomJsonInBlock returns the custom_json operations with the given
// id applied in one block.
func (c *Client) GetCustomJsonInBlock(blockNum uint32, id string) ([]CustomJSONEntry, error) {
	var entries []opEntry
	params := []interface{}{blockNum, false}
	if err := c.callRetry("condenser_api.get_ops_in_block", params, &entries); err != nil {
		return nil, err
	}
	var out []CustomJSONEntry
	for _, e := range entries {
		if entry, ok := customJSONFromEntry(e); ok && entry.ID == id {
			out = append(out, entry)
		}
	}
	return out, nil
}

// GetCustomJsonByBlockRange scans [startBlock, endBlock] for custom_json
// operations with the given id. A failing block is logged and skipped.
func (c *Client) GetCustomJsonByBlockRange(startBlock, endBlock uint32, id string, maxResults int) ([]CustomJSONEntry, error) {
	if startBlock > endBlock {
		return nil, fmt.Errorf("block range %d..%d is inverted", startBlock, endBlock)
	}
	maxResults = clampResults(maxResults)

	var out []CustomJSONEntry
	for block := startBlock; block <= endBlock; block++ {
		entries, err := c.GetCustomJsonInBlock(block, id)
		if err != nil {
			c.logger.Warn().Uint32("block", block).Err(err).Msg("block scan failed, skipping")
			continue
		}
		for _, e := range entries {
			out = append(out, e)
			if len(out) >= maxResults {
				return out, nil
			}
		}
	}
	return out, nil
}

// GetCustomJsonByDateRange translates a wall-clock range into a block
// range using the fixed block interval, then scans it.
func (c *Client) GetCustomJsonByDateRange(from, to time.Time, id string, maxResults int) ([]CustomJSONEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("date range %s..%s is inverted", from, to)
	}

	props, err := c.GetDynamicGlobalProperties()
	if err != nil {
		return nil, err
	}
	headTime, err := time.Parse("2006-01-02T15:04:05", props.Time)
	if err != nil {
		return nil, fmt.Errorf("parse head block time: %w", err)
	}

	startBlock := blockNumAt(props.HeadBlockNumber, headTime, from)
	endBlock := blockNumAt(props.HeadBlockNumber, headTime, to)
	return c.GetCustomJsonByBlockRange(startBlock, endBlock, id, maxResults)
}

// blockNumAt estimates the block height at t given the head block and its
// timestamp, clamped to [1, head].
func blockNumAt(head uint32, headTime, t time.Time) uint32 {
	delta := int64(headTime.Sub(t) / config.BlockInterval)
	switch {
	case delta >= int64(head):
		return 1
	case delta <= 0:
		return head
	default:
		return head - uint32(delta)
	}
}

func clampResults(n int) int {
	if n <= 0 || n > maxScanResults {
		return maxScanResults
	}
	return n
}
