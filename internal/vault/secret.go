package vault

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// secretMarker prefixes key values that are wrapped under the vault
// password instead of carried as plaintext WIF.
const secretMarker = "#"

// IsWrappedSecret reports whether s is a vault-wrapped key value.
func IsWrappedSecret(s string) bool {
	return strings.HasPrefix(s, secretMarker)
}

// WrapSecret encrypts a secret under the vault password and returns the
// marker-prefixed wire form.
func WrapSecret(secret, password string, params Params) (string, error) {
	ciphertext, err := encrypt([]byte(secret), []byte(password), params)
	if err != nil {
		return "", fmt.Errorf("wrap secret: %w", err)
	}
	return secretMarker + hex.EncodeToString(ciphertext), nil
}

// UnwrapSecret decrypts a marker-prefixed secret with the vault password.
func UnwrapSecret(wrapped, password string) (string, error) {
	if !IsWrappedSecret(wrapped) {
		return "", fmt.Errorf("value is not a wrapped secret")
	}
	ciphertext, err := hex.DecodeString(strings.TrimPrefix(wrapped, secretMarker))
	if err != nil {
		return "", fmt.Errorf("unwrap secret: %w", err)
	}
	plaintext, err := decrypt(ciphertext, []byte(password))
	if err != nil {
		return "", fmt.Errorf("unwrap secret: %w", err)
	}
	return string(plaintext), nil
}
