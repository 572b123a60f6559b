package chainclient

import (
	"encoding/json"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Account is the condenser_api.get_accounts view of an on-chain account,
// reduced to the fields the keychain needs.
type Account struct {
	Name                string         `json:"name"`
	Owner               keys.Authority `json:"owner"`
	Active              keys.Authority `json:"active"`
	Posting             keys.Authority `json:"posting"`
	MemoKey             string         `json:"memo_key"`
	JSONMetadata        string         `json:"json_metadata"`
	PostingJSONMetadata string         `json:"posting_json_metadata"`
}

// RCAccount is one entry from rc_api.find_rc_accounts. Mana fields arrive
// as either numbers or strings depending on the node, hence json.Number.
type RCAccount struct {
	Account   string `json:"account"`
	RCManabar struct {
		CurrentMana    json.Number `json:"current_mana"`
		LastUpdateTime int64       `json:"last_update_time"`
	} `json:"rc_manabar"`
	MaxRC json.Number `json:"max_rc"`
}

// DynamicGlobalProperties carries the chain-state fields used for TaPoS
// and expiry computation.
type DynamicGlobalProperties struct {
	HeadBlockNumber uint32 `json:"head_block_number"`
	HeadBlockID     string `json:"head_block_id"`
	Time            string `json:"time"`
}

// BlockHeader is the condenser_api.get_block_header result. Previous is
// the id of the block before the requested one.
type BlockHeader struct {
	Previous  string `json:"previous"`
	Timestamp string `json:"timestamp"`
	Witness   string `json:"witness"`
}

// opPair is the condenser [name, body] operation encoding as it appears in
// history and block-operation results.
type opPair struct {
	Name string
	Body json.RawMessage
}

func (p *opPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("operation pair has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Name); err != nil {
		return fmt.Errorf("operation name: %w", err)
	}
	p.Body = raw[1]
	return nil
}

// opEntry is one applied operation as returned by get_account_history and
// get_ops_in_block.
type opEntry struct {
	TrxID     string `json:"trx_id"`
	Block     uint32 `json:"block"`
	Timestamp string `json:"timestamp"`
	Op        opPair `json:"op"`
}

// HistoryItem is one [index, entry] pair from get_account_history.
type HistoryItem struct {
	Index int64
	Entry opEntry
}

func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("history item has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &h.Index); err != nil {
		return fmt.Errorf("history index: %w", err)
	}
	if err := json.Unmarshal(raw[1], &h.Entry); err != nil {
		return fmt.Errorf("history entry: %w", err)
	}
	return nil
}

// customJSONBody is the body of a custom_json operation.
type customJSONBody struct {
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
}

// CustomJSONEntry is a custom_json operation matched by one of the scan
// helpers, joined with its chain position.
type CustomJSONEntry struct {
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
	Block                uint32   `json:"block"`
	TrxID                string   `json:"trx_id"`
	Timestamp            string   `json:"timestamp"`
}

func customJSONFromEntry(e opEntry) (CustomJSONEntry, bool) {
	if e.Op.Name != "custom_json" {
		return CustomJSONEntry{}, false
	}
	var body customJSONBody
	if err := json.Unmarshal(e.Op.Body, &body); err != nil {
		return CustomJSONEntry{}, false
	}
	return CustomJSONEntry{
		ID:                   body.ID,
		JSON:                 body.JSON,
		RequiredAuths:        body.RequiredAuths,
		RequiredPostingAuths: body.RequiredPostingAuths,
		Block:                e.Block,
		TrxID:                e.TrxID,
		Timestamp:            e.Timestamp,
	}, true
}
