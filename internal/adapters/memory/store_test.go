package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/hexagonal-serverless-go/internal/greeting"
	"github.com/lex00/hexagonal-serverless-go/internal/ports"
)

func TestStore_SaveThenFetch(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Save(ctx, greeting.New("X", "Hi!")))

	g := s.Fetch(ctx, "X")
	assert.Equal(t, "Hi!", g.Formatted())
	assert.Equal(t, 1, s.Len())
}

func TestStore_FetchUnknown(t *testing.T) {
	g := New().Fetch(context.Background(), "Nobody")
	assert.False(t, g.HasText())
	assert.Equal(t, "Hello, Nobody!", g.Formatted())
}

func TestStore_LookupNotFound(t *testing.T) {
	_, err := New().Lookup(context.Background(), "Nobody")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Save(ctx, greeting.New("X", "first")))
	require.NoError(t, s.Save(ctx, greeting.New("X", "second")))

	assert.Equal(t, "second", s.Fetch(ctx, "X").Formatted())
	assert.Equal(t, 1, s.Len())
}

func TestStore_SaveErr(t *testing.T) {
	s := New()
	s.SaveErr = errors.New("disk full")

	err := s.Save(context.Background(), greeting.New("X", "Hi!"))
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 0, s.Len())
}
