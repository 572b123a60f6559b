// Package storage provides the key-value persistence layer for the keychain.
//
// The vault ciphertext, the plaintext active-account pointer, and backup
// snapshots are all stored through the DB interface. Production builds use
// Badger; tests use the in-memory implementation.
package storage

import "errors"

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Close() error
}
