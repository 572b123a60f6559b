package txengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ettaverse/etta-keychain-sub001/config"
	"github.com/ettaverse/etta-keychain-sub001/internal/chainclient"
	"github.com/ettaverse/etta-keychain-sub001/internal/session"
	"github.com/ettaverse/etta-keychain-sub001/internal/vault"
	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
	"github.com/ettaverse/etta-keychain-sub001/pkg/tx"
)

// chainStub is a canned chain node capturing broadcast envelopes.
type chainStub struct {
	mu         sync.Mutex
	srv        *httptest.Server
	broadcasts []tx.Envelope
	txKnown    bool
	calls      int
}

func newChainStub(t *testing.T) *chainStub {
	t.Helper()
	stub := &chainStub{}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
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
	case "condenser_api.get_dynamic_global_properties":
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"head_block_number":5000000,"head_block_id":"004c4b40aabbccdd00000000000000000000000000000000","time":"2024-06-01T12:00:00"},"id":%d}`, req.ID)
	case "condenser_api.broadcast_transaction":
		var params []tx.Envelope
		if err := json.Unmarshal(req.Params, &params); err == nil && len(params) == 1 {
			s.broadcasts = append(s.broadcasts, params[0])
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"id":"stub-tx-id"},"id":%d}`, req.ID)
	case "condenser_api.get_transaction":
		if s.txKnown {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","result":{"transaction_id":"stub-tx-id"},"id":%d}`, req.ID)
		} else {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":-32003,"message":"unknown transaction"},"id":%d}`, req.ID)
		}
	default:
		fmt.Fprintf(w, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"},"id":%d}`, req.ID)
	}
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

func (s *chainStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testEngine(t *testing.T, stub *chainStub) (*Engine, *session.Store) {
	t.Helper()
	client, err := chainclient.New(config.RPCConfig{
		Endpoints:  []string{stub.srv.URL},
		Timeout:    2 * time.Second,
		Retries:    2,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("chain client: %v", err)
	}
	sess := session.New()
	e := New(client, sess, config.TestnetChainID)
	e.sleep = func(time.Duration) {}
	return e, sess
}

func testWIF(t *testing.T, b byte) string {
	t.Helper()
	key, err := keys.PrivateKeyFromBytes(bytes.Repeat([]byte{b}, 32))
	if err != nil {
		t.Fatalf("key error: %v", err)
	}
	return key.WIF()
}

func TestEngine_SendOperation(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	ops := []tx.Operation{&tx.Vote{Voter: "alice", Author: "bob", Permlink: "p", Weight: 100}}
	result := e.SendOperation(ops, testWIF(t, 0x11), false, nil)
	if !result.Success {
		t.Fatalf("SendOperation() failed: %s", result.Error)
	}
	if result.TxID != "stub-tx-id" {
		t.Errorf("tx id = %q", result.TxID)
	}

	env := stub.lastBroadcast(t)
	if len(env.Signatures) != 1 {
		t.Fatalf("signatures = %d, want 1", len(env.Signatures))
	}
	// Default expiry is 60s past the head block time.
	if want := time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC); !env.Expiration.Equal(want) {
		t.Errorf("expiration = %v, want %v", env.Expiration, want)
	}
	if env.RefBlockNum != uint16(5000000&0xffff) {
		t.Errorf("ref_block_num = %d", env.RefBlockNum)
	}
}

func TestEngine_SendOperation_CustomExpiry(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	ops := []tx.Operation{&tx.Vote{Voter: "a", Author: "b", Permlink: "p", Weight: 1}}
	result := e.SendOperation(ops, testWIF(t, 0x11), false, &Options{Expiry: 5 * time.Minute})
	if !result.Success {
		t.Fatalf("SendOperation() failed: %s", result.Error)
	}
	env := stub.lastBroadcast(t)
	if want := time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC); !env.Expiration.Equal(want) {
		t.Errorf("expiration = %v, want %v", env.Expiration, want)
	}
}

func TestEngine_SendOperation_InvalidKey(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	result := e.SendOperation([]tx.Operation{&tx.Vote{}}, "not-a-wif", false, nil)
	if result.Success {
		t.Fatal("expected failure for malformed key")
	}
	if stub.callCount() != 0 {
		t.Errorf("chain calls = %d, key errors must short-circuit", stub.callCount())
	}
}

func TestEngine_SendOperation_WrappedKey(t *testing.T) {
	stub := newChainStub(t)
	e, sess := testEngine(t, stub)

	wif := testWIF(t, 0x11)
	wrapped, err := vault.WrapSecret(wif, "vaultpw", vault.Params{Memory: 8, Iterations: 1, Parallelism: 1})
	if err != nil {
		t.Fatalf("WrapSecret() error: %v", err)
	}

	// Locked session cannot unwrap.
	result := e.SendOperation([]tx.Operation{&tx.Vote{Voter: "a", Author: "b", Permlink: "p"}}, wrapped, false, nil)
	if result.Success || !strings.Contains(result.Error, "locked") {
		t.Errorf("locked result = %+v", result)
	}

	sess.Set("vaultpw")
	result = e.SendOperation([]tx.Operation{&tx.Vote{Voter: "a", Author: "b", Permlink: "p"}}, wrapped, false, nil)
	if !result.Success {
		t.Fatalf("SendOperation() with unlocked session failed: %s", result.Error)
	}
}

func TestEngine_Transfer_FormatsAmount(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	result := e.Transfer("alice", "bob", "1.5", "STEEM", "thanks", testWIF(t, 0x11))
	if !result.Success {
		t.Fatalf("Transfer() failed: %s", result.Error)
	}

	env := stub.lastBroadcast(t)
	transfer, ok := env.Operations[0].(*tx.Transfer)
	if !ok {
		t.Fatalf("operation type %T", env.Operations[0])
	}
	if transfer.Amount != "1.500 STEEM" {
		t.Errorf("amount = %q, want 1.500 STEEM", transfer.Amount)
	}

	bad := e.Transfer("alice", "bob", "1.5", "DOGE", "", testWIF(t, 0x11))
	if bad.Success {
		t.Error("unknown currency should fail before any chain call")
	}
}

func TestEngine_BroadcastCustomJson_RoleSelectsAuths(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)
	wif := testWIF(t, 0x11)

	e.BroadcastCustomJson("follow", `["follow",{}]`, "alice", keys.RolePosting, wif, false)
	op := stub.lastBroadcast(t).Operations[0].(*tx.CustomJSON)
	if len(op.RequiredPostingAuths) != 1 || op.RequiredPostingAuths[0] != "alice" || len(op.RequiredAuths) != 0 {
		t.Errorf("posting auths = %+v", op)
	}

	e.BroadcastCustomJson("ssc-mainnet", "{}", "alice", keys.RoleActive, wif, false)
	op = stub.lastBroadcast(t).Operations[0].(*tx.CustomJSON)
	if len(op.RequiredAuths) != 1 || op.RequiredAuths[0] != "alice" || len(op.RequiredPostingAuths) != 0 {
		t.Errorf("active auths = %+v", op)
	}
}

func TestEngine_WaitForConfirmation(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	if e.WaitForConfirmation("stub-tx-id", 3) {
		t.Error("unknown transaction should not confirm")
	}

	stub.mu.Lock()
	stub.txKnown = true
	stub.mu.Unlock()
	if !e.WaitForConfirmation("stub-tx-id", 3) {
		t.Error("known transaction should confirm")
	}
}

func TestEngine_SignDigest(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	digest := bytes.Repeat([]byte{0xab}, 32)
	sig, err := e.SignDigest(digest, testWIF(t, 0x11))
	if err != nil {
		t.Fatalf("SignDigest() error: %v", err)
	}
	if len(sig) != 130 {
		t.Errorf("signature hex length = %d, want 130", len(sig))
	}

	if _, err := e.SignDigest(digest, "junk"); err == nil {
		t.Error("malformed key should fail")
	}
}

func TestEngine_SignTransaction(t *testing.T) {
	stub := newChainStub(t)
	e, _ := testEngine(t, stub)

	ref, err := tx.RefBlockFrom(100, "0000006401020304aabbccdd000000000000000000000000")
	if err != nil {
		t.Fatalf("RefBlockFrom() error: %v", err)
	}
	env := tx.NewEnvelope(ref, time.Date(2024, 6, 1, 12, 1, 0, 0, time.UTC),
		&tx.Vote{Voter: "a", Author: "b", Permlink: "p", Weight: 1})

	signed, err := e.SignTransaction(env, testWIF(t, 0x11))
	if err != nil {
		t.Fatalf("SignTransaction() error: %v", err)
	}
	if len(signed.Signatures) != 1 {
		t.Errorf("signatures = %d, want 1", len(signed.Signatures))
	}
}
