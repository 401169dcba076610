// Package service orchestrates the greeting store.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lex00/hexagonal-serverless-go/internal/adapters/dynamo"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/greeting"
	"github.com/lex00/hexagonal-serverless-go/internal/ports"
)

// GreetingService reads and writes greetings through a ports.GreetingStore.
type GreetingService struct {
	store ports.GreetingStore
}

// New returns a service over store.
func New(store ports.GreetingStore) *GreetingService {
	return &GreetingService{store: store}
}

// NewDefault returns a service backed by the DynamoDB adapter.
func NewDefault(ctx context.Context, rt config.Runtime, log *zap.Logger) (*GreetingService, error) {
	store, err := dynamo.NewFromConfig(ctx, rt, log)
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

// GetGreeting returns the display text for name. Names are passed to the
// store unchanged.
func (s *GreetingService) GetGreeting(ctx context.Context, name string) (string, error) {
	return s.store.Fetch(ctx, name).Formatted(), nil
}

// SaveGreeting stores text as the greeting for name.
func (s *GreetingService) SaveGreeting(ctx context.Context, name, text string) error {
	if err := s.store.Save(ctx, greeting.New(name, text)); err != nil {
		return fmt.Errorf("saving greeting for %s: %w", name, err)
	}
	return nil
}
