// Package session holds the in-memory unlock state. The vault password
// lives only here while the keychain is unlocked; it is never persisted.
package session

import "sync"

// Store is the ephemeral unlock store. The zero value is locked.
type Store struct {
	mu       sync.RWMutex
	password string
	unlocked bool
}

// New returns a locked session store.
func New() *Store {
	return &Store{}
}

// Set unlocks the session with the given vault password.
func (s *Store) Set(password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = password
	s.unlocked = true
}

// Get returns the vault password and whether the session is unlocked.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.password, s.unlocked
}

// Unlocked reports whether a vault password is held.
func (s *Store) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unlocked
}

// Clear locks the session and drops the password.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.password = ""
	s.unlocked = false
}
