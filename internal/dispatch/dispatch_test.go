package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/accounts"
	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/internal/session"
	"github.com/ettaverse/etta-keychain-sub001/internal/storage"
	"github.com/ettaverse/etta-keychain-sub001/internal/txengine"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// chainStub is a canned node serving account lookups and capturing
// broadcast envelopes.
type chainStub struct {
	mu         sync.Mutex
	srv        *httptest.Server
	accounts   map[string]map[string]interface{}
	broadcasts []tx.Envelope
	calls      int
}

func newChainStub(t *testing.T) *chainStub {
	t.Helper()
	stub := &chainStub{accounts: map[string]map[string]interface{}{}}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *chainStub) addAccount(name string, acct map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct["name"] = name
	s.accounts[name] = acct
}

func (s *chainStub) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	var req struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		ID     int             `json:"id"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	switch req.Method {
	case "condenser_api.get_accounts":
		var params [][]string
		json.Unmarshal(req.Params, &params)
		result := []interface{}{}
		if len(params) == 1 {
			for _, name := range params[0] {
				if acct, ok := s.accounts[name]; ok {
					result = append(result, acct)
				}
			}
		}
		raw, _ := json.Marshal(result)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":%s,"id":%d}`, raw, req.ID)
	case "condenser_api.get_dynamic_global_properties":
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"head_block_number":5000000,"head_block_id":"004c4b40aabbccdd00000000000000000000000000000000","time":"2024-06-01T12:00:00"},"id":%d}`, req.ID)
	case "condenser_api.broadcast_transaction":
		var params []tx.Envelope
		if err := json.Unmarshal(req.Params, &params); err == nil && len(params) == 1 {
			s.broadcasts = append(s.broadcasts, params[0])
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"id":"stub-tx-id"},"id":%d}`, req.ID)
	default:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":%d}`, req.ID)
	}
}

func (s *chainStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *chainStub) lastBroadcast(t *testing.T) tx.Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.broadcasts) == 0 {
		t.Fatal("no transaction was broadcast")
	}
	return s.broadcasts[len(s.broadcasts)-1]
}

// fixture is a fully wired keychain over a stub node.
type fixture struct {
	stub    *chainStub
	dispat  *Dispatcher
	vault   *vault.Store
	session *session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stub := newChainStub(t)
	client, err := chainclient.New(config.RPCConfig{
		Endpoints:  []string{stub.srv.URL},
		Timeout:    2 * time.Second,
		Retries:    1,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("chain client: %v", err)
	}
	store := vault.New(storage.NewMemory(), vault.Params{Memory: 8, Iterations: 1, Parallelism: 1})
	sess := session.New()
	engine := txengine.New(client, sess, config.TestnetChainID)
	orch := accounts.New(store, client)
	return &fixture{
		stub:    stub,
		dispat:  New(orch, engine, store, client, sess),
		vault:   store,
		session: sess,
	}
}

// addStoredAccount seeds the vault directly and registers the matching
// on-chain account with the stub node.
func (f *fixture) addStoredAccount(t *testing.T, name string, ks keys.KeySet, onchain map[string]interface{}) {
	t.Helper()
	if err := f.vault.SaveAccount(name, ks, "vaultPw", "wif"); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if onchain != nil {
		f.stub.addAccount(name, onchain)
	}
}

func (f *fixture) unlock() {
	f.session.Set("vaultPw")
}

func (f *fixture) handle(t *testing.T, req string) Response {
	t.Helper()
	return f.dispat.Handle([]byte(req))
}

func newKey(t *testing.T) *keys.PrivateKey {
	t.Helper()
	key, err := keys.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestHandle_RequestIDAlwaysEchoed(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		req  string
	}{
		{"unknown type", `{"type":"teleport","request_id":42}`},
		{"missing type", `{"request_id":42}`},
		{"missing fields", `{"type":"transfer","request_id":42}`},
		{"locked vault", `{"type":"vote","request_id":42,"author":"a","permlink":"p","weight":100}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.handle(t, tc.req)
			if resp.Success {
				t.Error("expected failure")
			}
			if string(resp.RequestID) != "42" {
				t.Errorf("request_id = %s, want 42", resp.RequestID)
			}
			if resp.Error == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestHandle_UnknownType(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, `{"type":"teleport","request_id":1}`)
	if resp.Error != "Unknown request type" {
		t.Errorf("error = %q, want Unknown request type", resp.Error)
	}
}

func TestHandle_LockedKeychain(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, `{"type":"transfer","request_id":1,"to":"bob","amount":"1.5","currency":"STEEM"}`)
	if resp.Success || resp.Error != "Keychain is locked" {
		t.Errorf("response = %+v, want exact error %q", resp, "Keychain is locked")
	}
}

func TestHandle_VoteWeightOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.unlock()

	resp := f.handle(t, `{"type":"vote","request_id":7,"author":"bob","permlink":"p","weight":15000}`)
	if resp.Success {
		t.Fatal("expected rejection")
	}
	if resp.Error != "Vote weight must be between -10000 and 10000" {
		t.Errorf("error = %q", resp.Error)
	}
	if f.stub.callCount() != 0 {
		t.Errorf("chain calls = %d, weight validation must precede any chain call", f.stub.callCount())
	}
	if string(resp.RequestID) != "7" {
		t.Errorf("request_id = %s", resp.RequestID)
	}
}

func TestHandle_TransferUsesActiveAccount(t *testing.T) {
	f := newFixture(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Active: keys.Owned(active.WIF(), active.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"transfer","request_id":3,"to":"bob","amount":"1.5","currency":"STEEM","memo":""}`)
	if !resp.Success {
		t.Fatalf("transfer failed: %s", resp.Error)
	}

	env := f.stub.lastBroadcast(t)
	transfer, ok := env.Operations[0].(*tx.Transfer)
	if !ok {
		t.Fatalf("operation type %T", env.Operations[0])
	}
	if transfer.From != "alice" {
		t.Errorf("from = %q, want the active account", transfer.From)
	}
	if transfer.Amount != "1.500 STEEM" {
		t.Errorf("amount = %q, want 1.500 STEEM", transfer.Amount)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["tx_id"] != "stub-tx-id" {
		t.Errorf("result = %+v", resp.Result)
	}
}

func TestHandle_TransferEnforceRequiresUsername(t *testing.T) {
	f := newFixture(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Active: keys.Owned(active.WIF(), active.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"transfer","request_id":4,"to":"bob","amount":"1.5","currency":"STEEM","enforce":true}`)
	if resp.Success || !strings.Contains(resp.Error, "username is required") {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandle_TransferMissingKey(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	// Only a posting key is stored; transfer needs active.
	f.addStoredAccount(t, "alice", keys.KeySet{
		Posting: keys.Owned(posting.WIF(), posting.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"transfer","request_id":5,"to":"bob","amount":"1.5","currency":"STEEM"}`)
	if resp.Success || !strings.Contains(resp.Error, "no usable key") {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandle_Vote(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Posting: keys.Owned(posting.WIF(), posting.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"vote","request_id":8,"author":"bob","permlink":"my-post","weight":10000}`)
	if !resp.Success {
		t.Fatalf("vote failed: %s", resp.Error)
	}
	vote := f.stub.lastBroadcast(t).Operations[0].(*tx.Vote)
	if vote.Voter != "alice" || vote.Weight != 10000 {
		t.Errorf("vote = %+v", vote)
	}
}

func TestHandle_CustomJSONRoleSelection(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Posting: keys.Owned(posting.WIF(), posting.PublicKey().String()),
		Active:  keys.Owned(active.WIF(), active.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"custom_json","request_id":9,"id":"follow","json":"[\"follow\",{}]"}`)
	if !resp.Success {
		t.Fatalf("custom_json failed: %s", resp.Error)
	}
	op := f.stub.lastBroadcast(t).Operations[0].(*tx.CustomJSON)
	if len(op.RequiredPostingAuths) != 1 || op.RequiredPostingAuths[0] != "alice" {
		t.Errorf("posting auths = %+v", op)
	}

	resp = f.handle(t, `{"type":"custom_json","request_id":10,"id":"ssc","json":"{}","method":"active"}`)
	if !resp.Success {
		t.Fatalf("custom_json active failed: %s", resp.Error)
	}
	op = f.stub.lastBroadcast(t).Operations[0].(*tx.CustomJSON)
	if len(op.RequiredAuths) != 1 || op.RequiredAuths[0] != "alice" {
		t.Errorf("active auths = %+v", op)
	}
}

func TestHandle_DelegatedSlotResolvesThroughOwner(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	// "delegate" holds the real secret; "boss" references it.
	f.addStoredAccount(t, "delegate", keys.KeySet{
		Posting: keys.Owned(posting.WIF(), posting.PublicKey().String()),
	}, nil)
	f.addStoredAccount(t, "boss", keys.KeySet{
		Posting: keys.Delegated("delegate"),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"vote","request_id":11,"username":"boss","author":"bob","permlink":"p","weight":100}`)
	if !resp.Success {
		t.Fatalf("vote via delegated slot failed: %s", resp.Error)
	}
	vote := f.stub.lastBroadcast(t).Operations[0].(*tx.Vote)
	if vote.Voter != "boss" {
		t.Errorf("voter = %q, want boss", vote.Voter)
	}
}

func TestHandle_MemoRoundTrip(t *testing.T) {
	f := newFixture(t)
	aliceMemo := newKey(t)
	bobMemo := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Memo: keys.Owned(aliceMemo.WIF(), aliceMemo.PublicKey().String()),
	}, map[string]interface{}{"memo_key": aliceMemo.PublicKey().String()})
	f.stub.addAccount("bob", map[string]interface{}{"memo_key": bobMemo.PublicKey().String()})
	f.unlock()

	req, _ := json.Marshal(map[string]interface{}{
		"type": "encode", "request_id": 12,
		"username": "alice", "receiver": "bob", "message": "#secret note",
	})
	resp := f.dispat.Handle(req)
	if !resp.Success {
		t.Fatalf("encode failed: %s", resp.Error)
	}
	encoded, ok := resp.Result.(string)
	if !ok || !strings.HasPrefix(encoded, "#") {
		t.Fatalf("encoded = %v", resp.Result)
	}

	// Bob decodes with his memo key.
	f.addStoredAccount(t, "bobkeys", keys.KeySet{
		Memo: keys.Owned(bobMemo.WIF(), bobMemo.PublicKey().String()),
	}, nil)
	req, _ = json.Marshal(map[string]interface{}{
		"type": "decode", "request_id": 13,
		"username": "bobkeys", "message": encoded,
	})
	resp = f.dispat.Handle(req)
	if !resp.Success {
		t.Fatalf("decode failed: %s", resp.Error)
	}
	if resp.Result != "#secret note" {
		t.Errorf("decoded = %v", resp.Result)
	}
}

func TestHandle_SignBuffer(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Posting: keys.Owned(posting.WIF(), posting.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"signBuffer","request_id":14,"message":"hello","method":"Posting"}`)
	if !resp.Success {
		t.Fatalf("signBuffer failed: %s", resp.Error)
	}
	sig, ok := resp.Result.(string)
	if !ok || len(sig) != 130 {
		t.Errorf("signature = %v", resp.Result)
	}
}

func TestHandle_Broadcast(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Posting: keys.Owned(posting.WIF(), posting.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"broadcast","request_id":15,"operations":[["vote",{"voter":"alice","author":"bob","permlink":"p","weight":1}]]}`)
	if !resp.Success {
		t.Fatalf("broadcast failed: %s", resp.Error)
	}
	if _, ok := f.stub.lastBroadcast(t).Operations[0].(*tx.Vote); !ok {
		t.Error("vote operation not broadcast")
	}

	resp = f.handle(t, `{"type":"broadcast","request_id":16,"operations":[["teleport",{}]]}`)
	if resp.Success {
		t.Error("unsupported operation type should fail")
	}
}

func TestHandle_AddAccount(t *testing.T) {
	f := newFixture(t)
	posting := newKey(t)
	f.stub.addAccount("carol", map[string]interface{}{
		"posting": map[string]interface{}{
			"weight_threshold": 1,
			"account_auths":    [][]interface{}{},
			"key_auths":        [][]interface{}{{posting.PublicKey().String(), 1}},
		},
		"memo_key": "STMx",
	})
	f.unlock()

	req, _ := json.Marshal(map[string]interface{}{
		"type": "addAccount", "request_id": 17,
		"username": "carol",
		"keys":     map[string]string{"posting": posting.WIF()},
	})
	resp := f.dispat.Handle(req)
	if !resp.Success {
		t.Fatalf("addAccount failed: %s", resp.Error)
	}

	stored, err := f.vault.GetAccount("carol", "vaultPw")
	if err != nil || stored == nil || stored.Keys.Posting == nil {
		t.Fatalf("stored = (%+v, %v)", stored, err)
	}
}

func TestHandle_AddAccountAuthority(t *testing.T) {
	f := newFixture(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Active: keys.Owned(active.WIF(), active.PublicKey().String()),
	}, map[string]interface{}{
		"active": map[string]interface{}{
			"weight_threshold": 1,
			"account_auths":    [][]interface{}{},
			"key_auths":        [][]interface{}{{active.PublicKey().String(), 1}},
		},
		"posting": map[string]interface{}{
			"weight_threshold": 1,
			"account_auths":    [][]interface{}{},
			"key_auths":        [][]interface{}{{"STMp", 1}},
		},
		"memo_key": "STMx",
	})
	f.unlock()

	resp := f.handle(t, `{"type":"addAccountAuthority","request_id":18,"authorizedUsername":"helper","role":"posting","weight":1}`)
	if !resp.Success {
		t.Fatalf("addAccountAuthority failed: %s", resp.Error)
	}

	update := f.stub.lastBroadcast(t).Operations[0].(*tx.AccountUpdate)
	if update.Posting == nil {
		t.Fatal("posting authority not updated")
	}
	if w, ok := update.Posting.HasAccountAuth("helper"); !ok || w != 1 {
		t.Errorf("account auths = %+v", update.Posting.AccountAuths)
	}
	if update.Active != nil {
		t.Error("active authority must be untouched")
	}
}

func TestHandle_AuthorityMutationRefusesMultisig(t *testing.T) {
	f := newFixture(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Active: keys.Owned(active.WIF(), active.PublicKey().String()),
	}, map[string]interface{}{
		// Threshold 2 over two keys: multisig.
		"posting": map[string]interface{}{
			"weight_threshold": 2,
			"account_auths":    [][]interface{}{},
			"key_auths":        [][]interface{}{{"STMa", 1}, {"STMb", 1}},
		},
		"active": map[string]interface{}{
			"weight_threshold": 1,
			"account_auths":    [][]interface{}{},
			"key_auths":        [][]interface{}{{active.PublicKey().String(), 1}},
		},
		"memo_key": "STMx",
	})
	f.unlock()

	resp := f.handle(t, `{"type":"addAccountAuthority","request_id":19,"authorizedUsername":"helper","role":"posting","weight":1}`)
	if resp.Success || !strings.Contains(resp.Error, "multisig") {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandle_MalformedJSON(t *testing.T) {
	f := newFixture(t)
	resp := f.handle(t, `{not json`)
	if resp.Success || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandle_PowerUpAndDown(t *testing.T) {
	f := newFixture(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Active: keys.Owned(active.WIF(), active.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"powerUp","request_id":20,"recipient":"alice","amount":"10"}`)
	if !resp.Success {
		t.Fatalf("powerUp failed: %s", resp.Error)
	}
	up := f.stub.lastBroadcast(t).Operations[0].(*tx.TransferToVesting)
	if up.Amount != "10.000 STEEM" {
		t.Errorf("amount = %q", up.Amount)
	}

	resp = f.handle(t, `{"type":"powerDown","request_id":21,"hive_power":"1000.5"}`)
	if !resp.Success {
		t.Fatalf("powerDown failed: %s", resp.Error)
	}
	down := f.stub.lastBroadcast(t).Operations[0].(*tx.WithdrawVesting)
	if down.VestingShares != "1000.500000 VESTS" {
		t.Errorf("vesting shares = %q", down.VestingShares)
	}
}

func TestHandle_WitnessVoteAndProxy(t *testing.T) {
	f := newFixture(t)
	active := newKey(t)
	f.addStoredAccount(t, "alice", keys.KeySet{
		Active: keys.Owned(active.WIF(), active.PublicKey().String()),
	}, nil)
	f.unlock()

	resp := f.handle(t, `{"type":"witnessVote","request_id":22,"witness":"gtg","vote":true}`)
	if !resp.Success {
		t.Fatalf("witnessVote failed: %s", resp.Error)
	}
	wv := f.stub.lastBroadcast(t).Operations[0].(*tx.AccountWitnessVote)
	if wv.Witness != "gtg" || !wv.Approve {
		t.Errorf("witness vote = %+v", wv)
	}

	// Empty proxy clears the proxy and is valid.
	resp = f.handle(t, `{"type":"proxy","request_id":23,"proxy":""}`)
	if !resp.Success {
		t.Fatalf("proxy failed: %s", resp.Error)
	}
	px := f.stub.lastBroadcast(t).Operations[0].(*tx.AccountWitnessProxy)
	if px.Proxy != "" || px.Account != "alice" {
		t.Errorf("proxy = %+v", px)
	}

	resp = f.handle(t, `{"type":"proxy","request_id":24}`)
	if resp.Success || !strings.Contains(resp.Error, "proxy is required") {
		t.Errorf("missing proxy response = %+v", resp)
	}
}
