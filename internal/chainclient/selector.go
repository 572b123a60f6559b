package chainclient

import (
	"fmt"
	"sync"
)

// Selector owns the ordered RPC endpoint list and the current selection.
// It is an explicit value passed into the Client, never ambient state.
type Selector struct {
	mu        sync.Mutex
	endpoints []string
	idx       int
}

// NewSelector builds a selector over the given endpoints, starting at the
// first one.
func NewSelector(endpoints []string) (*Selector, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no rpc endpoints configured")
	}
	eps := make([]string, len(endpoints))
	copy(eps, endpoints)
	return &Selector{endpoints: eps}, nil
}

// Current returns the currently selected endpoint.
func (s *Selector) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoints[s.idx]
}

// Next advances round-robin to the next endpoint (wrapping around) and
// returns it. With a single endpoint it returns that endpoint again.
func (s *Selector) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx = (s.idx + 1) % len(s.endpoints)
	return s.endpoints[s.idx]
}

// Count returns the number of configured endpoints.
func (s *Selector) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.endpoints)
}

// Endpoints returns a copy of the configured endpoint list in order.
func (s *Selector) Endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}
