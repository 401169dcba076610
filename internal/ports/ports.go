// Package ports declares the capabilities the greeting service depends on.
package ports

import (
	"context"
	"errors"

	"github.com/lex00/hexagonal-serverless-go/internal/greeting"
)

// ErrNotFound is returned by GreetingLookup when no greeting is stored for a name.
var ErrNotFound = errors.New("greeting not found")

// GreetingStore persists greetings keyed by name.
type GreetingStore interface {
	// Fetch returns the stored greeting for name. It never fails: when nothing
	// is stored the returned greeting has no text and formats to the default.
	Fetch(ctx context.Context, name string) *greeting.Greeting

	// Save overwrites the stored greeting for g.Name.
	Save(ctx context.Context, g *greeting.Greeting) error
}

// GreetingLookup is implemented by stores that can tell a missing greeting
// apart from a failed read.
type GreetingLookup interface {
	Lookup(ctx context.Context, name string) (*greeting.Greeting, error)
}
