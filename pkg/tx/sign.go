package tx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Digest computes the signing digest: SHA-256 over the chain id bytes
// followed by the serialized transaction.
func (env *Envelope) Digest(chainID string) ([]byte, error) {
	chain, err := hex.DecodeString(chainID)
	if err != nil {
		return nil, fmt.Errorf("decode chain id: %w", err)
	}
	if len(chain) != 32 {
		return nil, fmt.Errorf("chain id must be 32 bytes, got %d", len(chain))
	}

	serialized, err := env.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	h := sha256.New()
	h.Write(chain)
	h.Write(serialized)
	return h.Sum(nil), nil
}

// Sign appends a compact recoverable signature over the envelope's digest.
func (env *Envelope) Sign(chainID string, key *keys.PrivateKey) error {
	digest, err := env.Digest(chainID)
	if err != nil {
		return err
	}
	sig, err := key.SignCompact(digest)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	env.Signatures = append(env.Signatures, hex.EncodeToString(sig))
	return nil
}
