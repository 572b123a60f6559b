// Package memo implements encrypted memos: secp256k1 ECDH key agreement
// with AES-256-CBC, carried as a '#'-prefixed base58 string.
package memo

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/ettaverse/etta-keychain-sub001/pkg/keys"
)

// Prefix marks a memo as encrypted.
const Prefix = "#"

// wire layout: from_pub(33) | to_pub(33) | nonce(8 LE) | check(4) | ciphertext
const headerSize = 33 + 33 + 8 + 4

// IsEncrypted reports whether the memo carries the encrypted-memo prefix.
func IsEncrypted(memo string) bool {
	return strings.HasPrefix(memo, Prefix)
}

// Encode encrypts a '#'-prefixed memo from the sender's memo key to the
// recipient's memo public key.
func Encode(priv *keys.PrivateKey, to *keys.PublicKey, memo string) (string, error) {
	if !IsEncrypted(memo) {
		return "", fmt.Errorf("memo must start with %q to be encrypted", Prefix)
	}
	plaintext := []byte(memo[len(Prefix):])

	var nonceBuf [8]byte
	if _, err := rand.Read(nonceBuf[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce := binary.LittleEndian.Uint64(nonceBuf[:])

	key, iv, check := keyMaterial(priv.ECDH(to), nonce)
	ciphertext, err := encryptCBC(plaintext, key, iv)
	if err != nil {
		return "", err
	}

	out := make([]byte, 0, headerSize+len(ciphertext))
	out = append(out, priv.PublicKey().Serialize()...)
	out = append(out, to.Serialize()...)
	out = binary.LittleEndian.AppendUint64(out, nonce)
	out = append(out, check...)
	out = append(out, ciphertext...)

	return Prefix + base58.Encode(out), nil
}

// Decode decrypts an encrypted memo using the local memo private key. The
// key may belong to either the sender or the recipient.
func Decode(priv *keys.PrivateKey, encoded string) (string, error) {
	if !IsEncrypted(encoded) {
		return "", fmt.Errorf("memo is not encrypted")
	}

	raw, err := base58.Decode(encoded[len(Prefix):])
	if err != nil {
		return "", fmt.Errorf("decode memo: %w", err)
	}
	if len(raw) < headerSize+aes.BlockSize {
		return "", fmt.Errorf("encrypted memo too short: %d bytes", len(raw))
	}

	fromPub, err := parseCompressed(raw[:33])
	if err != nil {
		return "", fmt.Errorf("memo sender key: %w", err)
	}
	toPub, err := parseCompressed(raw[33:66])
	if err != nil {
		return "", fmt.Errorf("memo recipient key: %w", err)
	}
	nonce := binary.LittleEndian.Uint64(raw[66:74])
	check := raw[74:78]
	ciphertext := raw[78:]

	// Pick the counterparty key: we hold one side of the exchange.
	ourPub := priv.PublicKey()
	var other *keys.PublicKey
	switch {
	case ourPub.Equal(fromPub):
		other = toPub
	case ourPub.Equal(toPub):
		other = fromPub
	default:
		return "", fmt.Errorf("memo was not addressed to this key")
	}

	key, iv, wantCheck := keyMaterial(priv.ECDH(other), nonce)
	for i := range check {
		if check[i] != wantCheck[i] {
			return "", fmt.Errorf("memo checksum mismatch")
		}
	}

	plaintext, err := decryptCBC(ciphertext, key, iv)
	if err != nil {
		return "", err
	}
	return Prefix + string(plaintext), nil
}

// keyMaterial derives the AES key, IV and checksum from the shared secret
// and nonce.
func keyMaterial(shared []byte, nonce uint64) (key, iv, check []byte) {
	var seed [8 + 64]byte
	binary.LittleEndian.PutUint64(seed[:8], nonce)
	copy(seed[8:], shared)

	km := sha512.Sum512(seed[:])
	sum := sha256.Sum256(km[:])
	return km[:32], km[32:48], sum[:4]
}

func encryptCBC(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func decryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a block multiple", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty padded data")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-pad], nil
}

// parseCompressed decodes a raw 33-byte compressed public key.
func parseCompressed(b []byte) (*keys.PublicKey, error) {
	return keys.ParsePublicKeyBytes(b)
}
