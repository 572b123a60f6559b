package keys

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

// Public key address prefixes.
const (
	MainnetPrefix = "STM"
	TestnetPrefix = "TST"
)

// wifVersion is the version byte prepended to a private key in WIF.
const wifVersion = 0x80

// addressPrefix is the current public key prefix (mainnet by default).
var addressPrefix = MainnetPrefix

// SetAddressPrefix switches the public key prefix (e.g. for testnet).
func SetAddressPrefix(prefix string) {
	addressPrefix = prefix
}

// AddressPrefix returns the current public key prefix.
func AddressPrefix() string {
	return addressPrefix
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey creates a new random private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// ParseWIF decodes a Wallet Import Format private key string.
func ParseWIF(wif string) (*PrivateKey, error) {
	raw, err := base58.Decode(wif)
	if err != nil {
		return nil, fmt.Errorf("decode wif: %w", err)
	}
	// version(1) + key(32) + checksum(4)
	if len(raw) != 37 {
		return nil, fmt.Errorf("wif must decode to 37 bytes, got %d", len(raw))
	}
	if raw[0] != wifVersion {
		return nil, fmt.Errorf("wif version byte 0x%02x, want 0x%02x", raw[0], wifVersion)
	}
	payload := raw[:33]
	checksum := raw[33:]
	if !bytes.Equal(doubleSHA256(payload)[:4], checksum) {
		return nil, fmt.Errorf("wif checksum mismatch")
	}
	return PrivateKeyFromBytes(raw[1:33])
}

// ValidWIF reports whether s is a well-formed WIF private key. This is a
// format check only; it makes no ownership claim.
func ValidWIF(s string) bool {
	_, err := ParseWIF(s)
	return err == nil
}

// WIF encodes the private key in Wallet Import Format.
func (pk *PrivateKey) WIF() string {
	payload := make([]byte, 0, 37)
	payload = append(payload, wifVersion)
	payload = append(payload, pk.key.Serialize()...)
	payload = append(payload, doubleSHA256(payload)[:4]...)
	return base58.Encode(payload)
}

// PublicKey derives the matching public key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// SignCompact produces a 65-byte compact recoverable ECDSA signature over a
// 32-byte digest, in the chain's signature layout (header byte first, with
// the compressed-pubkey flag set).
func (pk *PrivateKey) SignCompact(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	return ecdsa.SignCompact(pk.key, digest, true), nil
}

// ECDH computes a shared secret with the given public key. Used by memo
// encryption.
func (pk *PrivateKey) ECDH(pub *PublicKey) []byte {
	shared := secp256k1.GenerateSharedSecret(pk.key, pub.key)
	sum := sha512Sum(shared)
	return sum[:]
}

// ParsePublicKey decodes a prefixed public key string (e.g. "STM7abc...").
func ParsePublicKey(s string) (*PublicKey, error) {
	if len(s) <= len(addressPrefix) {
		return nil, fmt.Errorf("public key string too short")
	}
	prefix := s[:3]
	if prefix != MainnetPrefix && prefix != TestnetPrefix {
		return nil, fmt.Errorf("unknown public key prefix %q", prefix)
	}
	raw, err := base58.Decode(s[3:])
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	// key(33) + checksum(4)
	if len(raw) != 37 {
		return nil, fmt.Errorf("public key must decode to 37 bytes, got %d", len(raw))
	}
	payload := raw[:33]
	checksum := raw[33:]
	if !bytes.Equal(ripemd160Sum(payload)[:4], checksum) {
		return nil, fmt.Errorf("public key checksum mismatch")
	}
	key, err := secp256k1.ParsePubKey(payload)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// ParsePublicKeyBytes decodes a raw compressed 33-byte public key.
func ParsePublicKeyBytes(b []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// String encodes the public key with the current address prefix.
func (p *PublicKey) String() string {
	payload := p.key.SerializeCompressed()
	out := make([]byte, 0, 37)
	out = append(out, payload...)
	out = append(out, ripemd160Sum(payload)[:4]...)
	return addressPrefix + base58.Encode(out)
}

// Serialize returns the compressed 33-byte public key.
func (p *PublicKey) Serialize() []byte {
	return p.key.SerializeCompressed()
}

// Equal reports whether two public keys are the same point.
func (p *PublicKey) Equal(other *PublicKey) bool {
	if other == nil {
		return false
	}
	return p.key.IsEqual(other.key)
}

// MarshalText implements encoding.TextMarshaler.
func (p *PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// doubleSHA256 computes SHA-256(SHA-256(data)). WIF checksums use this.
func doubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// sha512Sum computes SHA-512. Memo shared secrets use this.
func sha512Sum(data []byte) [64]byte {
	return sha512.Sum512(data)
}

// ripemd160Sum computes the RIPEMD-160 hash. Public key checksums use this.
func ripemd160Sum(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}
