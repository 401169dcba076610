// Package memory is an in-process GreetingStore used by tests and the
// CLI's --local mode.
package memory

import (
	"context"
	"sync"

	"github.com/lex00/hexagonal-serverless-go/internal/greeting"
	"github.com/lex00/hexagonal-serverless-go/internal/ports"
)

var (
	_ ports.GreetingStore  = (*Store)(nil)
	_ ports.GreetingLookup = (*Store)(nil)
)

// Store keeps greetings in a map keyed by name.
type Store struct {
	mu    sync.RWMutex
	items map[string]greeting.Greeting
	// SaveErr, when set, is returned by Save instead of storing.
	SaveErr error
}

// New returns an empty Store.
func New() *Store {
	return &Store{items: make(map[string]greeting.Greeting)}
}

// Lookup returns a copy of the stored greeting or ports.ErrNotFound.
func (s *Store) Lookup(_ context.Context, name string) (*greeting.Greeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.items[name]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &g, nil
}

// Fetch implements ports.GreetingStore.
func (s *Store) Fetch(ctx context.Context, name string) *greeting.Greeting {
	g, err := s.Lookup(ctx, name)
	if err != nil {
		return greeting.New(name, "")
	}
	return g
}

// Save implements ports.GreetingStore.
func (s *Store) Save(_ context.Context, g *greeting.Greeting) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	g.Touch()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[g.Name] = *g
	return nil
}

// Len returns the number of stored greetings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
