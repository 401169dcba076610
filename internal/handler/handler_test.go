package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/hexagonal-serverless-go/internal/adapters/memory"
	"github.com/lex00/hexagonal-serverless-go/internal/config"
	"github.com/lex00/hexagonal-serverless-go/internal/service"
)

type failingGreeter struct{ err error }

func (f failingGreeter) GetGreeting(context.Context, string) (string, error) {
	return "", f.err
}

func newMemoryHandler() *Handler {
	return New(service.New(memory.New()), nil)
}

func TestHandle_Name(t *testing.T) {
	resp, err := newMemoryHandler().Handle(context.Background(), events.APIGatewayProxyRequest{
		QueryStringParameters: map[string]string{"name": "TestUser"},
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.JSONEq(t, `{"message": "Hello, TestUser!"}`, resp.Body)
}

func TestHandle_DefaultName(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"nil parameters", nil},
		{"no name key", map[string]string{"other": "x"}},
		{"empty name", map[string]string{"name": ""}},
		{"blank name", map[string]string{"name": "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newMemoryHandler().Handle(context.Background(), events.APIGatewayProxyRequest{
				QueryStringParameters: tt.params,
			})
			require.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
			assert.JSONEq(t, `{"message": "Hello, World!"}`, resp.Body)
		})
	}
}

func TestHandle_StoredGreeting(t *testing.T) {
	ctx := context.Background()
	svc := service.New(memory.New())
	require.NoError(t, svc.SaveGreeting(ctx, "X", "Hi!"))

	resp, err := New(svc, nil).Handle(ctx, events.APIGatewayProxyRequest{
		QueryStringParameters: map[string]string{"name": "X"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Hi!"}`, resp.Body)
}

func TestHandle_ServiceError(t *testing.T) {
	h := New(failingGreeter{err: errors.New("table unavailable")}, nil)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)

	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.JSONEq(t, `{"message": "Error: table unavailable"}`, resp.Body)
}

func TestHandle_LazyFactoryError(t *testing.T) {
	calls := 0
	h := NewLazy(func(context.Context) (Greeter, error) {
		calls++
		if calls == 1 {
			return nil, &config.Error{Key: config.KeyTableName}
		}
		return service.New(memory.New()), nil
	}, nil)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
	assert.JSONEq(t, `{"message": "Error: required configuration 'HELLO_WORLD_TABLE_NAME' not found"}`, resp.Body)

	resp, err = h.Handle(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	_, _ = h.Handle(context.Background(), events.APIGatewayProxyRequest{})
	assert.Equal(t, 2, calls)
}

func TestNameFrom(t *testing.T) {
	assert.Equal(t, "Ann", NameFrom(events.APIGatewayProxyRequest{QueryStringParameters: map[string]string{"name": " Ann "}}))
	assert.Equal(t, DefaultName, NameFrom(events.APIGatewayProxyRequest{}))
}
