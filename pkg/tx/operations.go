package tx

import (
	"encoding/json"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Operation is one chain operation inside an envelope.
type Operation interface {
	// Type returns the chain operation name, e.g. "transfer".
	Type() string
}

// Operations serializes as the chain's [[name, body], ...] form.
type Operations []Operation

// MarshalJSON implements json.Marshaler.
func (ops Operations) MarshalJSON() ([]byte, error) {
	out := make([][2]interface{}, len(ops))
	for i, op := range ops {
		out[i] = [2]interface{}{op.Type(), op}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ops *Operations) UnmarshalJSON(data []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("operations must be [name, body] pairs: %w", err)
	}

	result := make(Operations, 0, len(pairs))
	for _, pair := range pairs {
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			return fmt.Errorf("operation name: %w", err)
		}
		op, err := newOperation(name)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(pair[1], op); err != nil {
			return fmt.Errorf("operation %q body: %w", name, err)
		}
		result = append(result, op)
	}
	*ops = result
	return nil
}

// newOperation returns an empty operation struct for a chain op name.
func newOperation(name string) (Operation, error) {
	switch name {
	case "vote":
		return &Vote{}, nil
	case "comment":
		return &Comment{}, nil
	case "transfer":
		return &Transfer{}, nil
	case "transfer_to_vesting":
		return &TransferToVesting{}, nil
	case "withdraw_vesting":
		return &WithdrawVesting{}, nil
	case "account_create":
		return &AccountCreate{}, nil
	case "account_update":
		return &AccountUpdate{}, nil
	case "account_witness_vote":
		return &AccountWitnessVote{}, nil
	case "account_witness_proxy":
		return &AccountWitnessProxy{}, nil
	case "custom_json":
		return &CustomJSON{}, nil
	case "delegate_vesting_shares":
		return &DelegateVestingShares{}, nil
	default:
		return nil, fmt.Errorf("unsupported operation type %q", name)
	}
}

// Vote casts or adjusts a vote on a post or comment.
type Vote struct {
	Voter    string `json:"voter"`
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
	Weight   int16  `json:"weight"`
}

func (*Vote) Type() string { return "vote" }

// Comment creates a post (empty parent author) or a reply.
type Comment struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
	Author         string `json:"author"`
	Permlink       string `json:"permlink"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	JSONMetadata   string `json:"json_metadata"`
}

func (*Comment) Type() string { return "comment" }

// Transfer moves liquid funds between accounts.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo"`
}

func (*Transfer) Type() string { return "transfer" }

// TransferToVesting powers up liquid funds into vesting shares.
type TransferToVesting struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (*TransferToVesting) Type() string { return "transfer_to_vesting" }

// WithdrawVesting starts a power-down of vesting shares.
type WithdrawVesting struct {
	Account       string `json:"account"`
	VestingShares string `json:"vesting_shares"`
}

func (*WithdrawVesting) Type() string { return "withdraw_vesting" }

// DelegateVestingShares delegates vesting shares to another account.
type DelegateVestingShares struct {
	Delegator     string `json:"delegator"`
	Delegatee     string `json:"delegatee"`
	VestingShares string `json:"vesting_shares"`
}

func (*DelegateVestingShares) Type() string { return "delegate_vesting_shares" }

// AccountCreate registers a new on-chain account.
type AccountCreate struct {
	Fee            string         `json:"fee"`
	Creator        string         `json:"creator"`
	NewAccountName string         `json:"new_account_name"`
	Owner          keys.Authority `json:"owner"`
	Active         keys.Authority `json:"active"`
	Posting        keys.Authority `json:"posting"`
	MemoKey        string         `json:"memo_key"`
	JSONMetadata   string         `json:"json_metadata"`
}

func (*AccountCreate) Type() string { return "account_create" }

// AccountUpdate changes an account's authorities and/or memo key. Nil
// authorities are left unchanged on chain.
type AccountUpdate struct {
	Account      string          `json:"account"`
	Owner        *keys.Authority `json:"owner,omitempty"`
	Active       *keys.Authority `json:"active,omitempty"`
	Posting      *keys.Authority `json:"posting,omitempty"`
	MemoKey      string          `json:"memo_key"`
	JSONMetadata string          `json:"json_metadata"`
}

func (*AccountUpdate) Type() string { return "account_update" }

// AccountWitnessVote approves or unapproves a witness.
type AccountWitnessVote struct {
	Account string `json:"account"`
	Witness string `json:"witness"`
	Approve bool   `json:"approve"`
}

func (*AccountWitnessVote) Type() string { return "account_witness_vote" }

// AccountWitnessProxy sets or clears a witness-vote proxy.
type AccountWitnessProxy struct {
	Account string `json:"account"`
	Proxy   string `json:"proxy"`
}

func (*AccountWitnessProxy) Type() string { return "account_witness_proxy" }

// CustomJSON carries an application-defined JSON payload tagged with an id.
// Exactly one of RequiredAuths / RequiredPostingAuths should be non-empty,
// selecting the signing role.
type CustomJSON struct {
	RequiredAuths        []string `json:"required_auths"`
	RequiredPostingAuths []string `json:"required_posting_auths"`
	ID                   string   `json:"id"`
	JSON                 string   `json:"json"`
}

func (*CustomJSON) Type() string { return "custom_json" }
