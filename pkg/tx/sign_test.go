package tx

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"

	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

const testChainID = "18dcf0a285365fc58b71f18b3d3fec954aa0c141c44e4e5cb4cf777b9eab274e"

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	ref, err := RefBlockFrom(12345, "000030390102030400000000000000000000000000000000")
	if err != nil {
		t.Fatalf("RefBlockFrom() error: %v", err)
	}
	expiry := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return NewEnvelope(ref, expiry,
		&Transfer{From: "alice", To: "bob", Amount: "1.000 STEEM", Memo: ""},
	)
}

func TestEnvelope_SerializeDeterministic(t *testing.T) {
	env := testEnvelope(t)

	a, err := env.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	b, err := env.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("serialization is not deterministic")
	}

	// Header: ref_block_num(2) + ref_block_prefix(4) + expiration(4).
	if len(a) < 10 {
		t.Fatalf("serialized tx too short: %d bytes", len(a))
	}
	// ref_block_num 12345 & 0xffff = 0x3039 little-endian.
	if a[0] != 0x39 || a[1] != 0x30 {
		t.Errorf("ref_block_num bytes = %x %x", a[0], a[1])
	}
}

func TestEnvelope_SerializeChangesWithContent(t *testing.T) {
	env := testEnvelope(t)
	base, err := env.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}

	env.Operations = append(env.Operations, &Vote{Voter: "alice", Author: "bob", Permlink: "p", Weight: 1})
	changed, err := env.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	if bytes.Equal(base, changed) {
		t.Error("serialization did not change with added operation")
	}
}

func TestEnvelope_SerializeBadAsset(t *testing.T) {
	env := testEnvelope(t)
	env.Operations = Operations{&Transfer{From: "a", To: "b", Amount: "1 DOGE"}}
	if _, err := env.Serialize(); err == nil {
		t.Error("Serialize() with unknown asset should fail")
	}
}

func TestEnvelope_Digest(t *testing.T) {
	env := testEnvelope(t)

	digest, err := env.Digest(testChainID)
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if len(digest) != 32 {
		t.Errorf("digest length = %d, want 32", len(digest))
	}

	// A different chain id must produce a different digest (replay
	// protection across chains).
	other, err := env.Digest("ab" + testChainID[2:])
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if bytes.Equal(digest, other) {
		t.Error("digest does not depend on chain id")
	}
}

func TestEnvelope_Digest_BadChainID(t *testing.T) {
	env := testEnvelope(t)
	if _, err := env.Digest("zz"); err == nil {
		t.Error("Digest() with non-hex chain id should fail")
	}
	if _, err := env.Digest("abcd"); err == nil {
		t.Error("Digest() with short chain id should fail")
	}
}

func TestEnvelope_Sign(t *testing.T) {
	env := testEnvelope(t)
	key, err := keys.PrivateKeyFromBytes(bytes.Repeat([]byte{0x22}, 32))
	if err != nil {
		t.Fatalf("key error: %v", err)
	}

	if err := env.Sign(testChainID, key); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(env.Signatures) != 1 {
		t.Fatalf("signatures = %d, want 1", len(env.Signatures))
	}

	raw, err := hex.DecodeString(env.Signatures[0])
	if err != nil {
		t.Fatalf("signature is not hex: %v", err)
	}
	if len(raw) != 65 {
		t.Errorf("signature length = %d, want 65", len(raw))
	}
}

func TestEnvelope_Validate(t *testing.T) {
	env := testEnvelope(t)
	key, _ := keys.PrivateKeyFromBytes(bytes.Repeat([]byte{0x22}, 32))
	env.Sign(testChainID, key)

	if err := env.Validate(); err != nil {
		t.Errorf("Validate() on complete tx: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{"no signatures", func(e *Envelope) { e.Signatures = nil }},
		{"empty signature", func(e *Envelope) { e.Signatures = []string{""} }},
		{"no operations", func(e *Envelope) { e.Operations = nil }},
		{"no tapos", func(e *Envelope) { e.RefBlockNum = 0; e.RefBlockPrefix = 0 }},
		{"no expiration", func(e *Envelope) { e.Expiration = Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := testEnvelope(t)
			bad.Sign(testChainID, key)
			tc.mutate(bad)
			if err := bad.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}
